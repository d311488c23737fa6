package internal

// Version is the current version of the bookchat client.
// This should be updated with each release.
const Version = "0.4.1"

// UserAgent identifies the client on REST calls and the socket handshake.
func UserAgent() string {
	return "bookchat/" + Version
}
