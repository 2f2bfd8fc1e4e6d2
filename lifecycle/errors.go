// lifecycle/errors.go
package lifecycle

import "fmt"

// Code classifies why a command was refused.
type Code int

const (
	CodeUnauthorized Code = iota
	CodeInvalidState
	CodeBadData
	CodeParameterMismatch
	CodeLobbyIncomplete
	CodeStoreFailure
	CodeBrokerFailure
)

func (c Code) String() string {
	switch c {
	case CodeUnauthorized:
		return "unauthorized"
	case CodeInvalidState:
		return "invalid-state"
	case CodeBadData:
		return "bad-data"
	case CodeParameterMismatch:
		return "parameter-mismatch"
	case CodeLobbyIncomplete:
		return "lobby-incomplete"
	case CodeStoreFailure:
		return "store-failure"
	case CodeBrokerFailure:
		return "broker-failure"
	default:
		return "unknown"
	}
}

// Failure is a refused command: a taxonomy code plus the reason string
// returned to the client. A failed command never mutates stored state.
type Failure struct {
	Code   Code
	Reason string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Code, f.Reason)
}

func errUnauthorized() *Failure {
	return &Failure{Code: CodeUnauthorized, Reason: "unauthorized"}
}

func errInvalidState() *Failure {
	return &Failure{Code: CodeInvalidState, Reason: "invalid game state"}
}

func errBadData() *Failure {
	return &Failure{Code: CodeBadData, Reason: "received bad data"}
}

func errParameterMismatch() *Failure {
	return &Failure{Code: CodeParameterMismatch, Reason: "invalid game parameters"}
}

func errLobbyIncomplete(reason string) *Failure {
	return &Failure{Code: CodeLobbyIncomplete, Reason: reason}
}

func errStoreFailure() *Failure {
	return &Failure{Code: CodeStoreFailure, Reason: "database query failed"}
}

func errBrokerFailure() *Failure {
	return &Failure{Code: CodeBrokerFailure, Reason: "pusher client failure"}
}
