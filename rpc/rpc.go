package rpc

import (
	"context"
	"net"
	"net/rpc"

	"github.com/chainreaction/gameserver/broker"
	"github.com/chainreaction/gameserver/logger"
	"github.com/chainreaction/gameserver/persistence"
)

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
}

// NewServer creates a new RPC server.
func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  addr,
	}, nil
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			// Check if the error is due to the listener being closed.
			if _, ok := err.(*net.OpError); ok {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// AdminService exposes operational queries over net/rpc. Methods follow
// the net/rpc signature: exported method, exported arguments, second
// argument a pointer, error return.
type AdminService struct {
	store persistence.Store
	brk   broker.Broker
}

func NewAdminService(store persistence.Store, brk broker.Broker) *AdminService {
	return &AdminService{store: store, brk: brk}
}

// Register makes the service available under the "Admin" name.
func (as *AdminService) Register() error {
	return rpc.RegisterName("Admin", as)
}

type LookupSessionArgs struct {
	Username string
}

type LookupSessionReply struct {
	SessionID string
	Activated bool
	Phase     string
	Channel   string
}

// LookupSession reports the session bound to a username, if any.
func (as *AdminService) LookupSession(args *LookupSessionArgs, reply *LookupSessionReply) error {
	sess, err := as.store.GetSessionByUsername(context.Background(), args.Username)
	if err != nil {
		return err
	}
	reply.SessionID = sess.SessionID
	reply.Activated = sess.Activated
	if sess.State != nil {
		reply.Phase = sess.State.Phase().String()
		reply.Channel = sess.State.ChannelName()
	}
	return nil
}

type RoomInfoArgs struct {
	RoomID string
}

type RoomInfoReply struct {
	Channel    string
	Occupants  int
	Subscribed int
}

// RoomInfo reports a room's stored occupancy next to its live presence
// channel occupancy, which is the first thing to compare when a lobby
// will not start.
func (as *AdminService) RoomInfo(args *RoomInfoArgs, reply *RoomInfoReply) error {
	room, err := as.store.GetRoom(context.Background(), args.RoomID)
	if err != nil {
		return err
	}
	subscribed, err := as.brk.Occupancy(room.ChannelName())
	if err != nil {
		return err
	}
	reply.Channel = room.ChannelName()
	reply.Occupants = room.Occupants
	reply.Subscribed = subscribed
	return nil
}
