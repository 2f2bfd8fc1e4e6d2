// broker/auth.go
package broker

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// signature computes the channel-subscription signature over
// "socketID:channel" (":channelData" appended for presence channels),
// keyed by the application secret. The grant handed to clients is
// "appKey:signature", so the key identifies which secret signed it.
func signature(secret, socketID, channel, channelData string) string {
	toSign := socketID + ":" + channel
	if channelData != "" {
		toSign += ":" + channelData
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(toSign))
	return hex.EncodeToString(mac.Sum(nil))
}

func validSignature(secret, appKey, socketID, channel, channelData, presented string) bool {
	expected := appKey + ":" + signature(secret, socketID, channel, channelData)
	return hmac.Equal([]byte(expected), []byte(presented))
}
