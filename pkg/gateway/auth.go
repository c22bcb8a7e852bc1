package gateway

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
)

// SecretHeader carries the shared secret on HTTP control requests
const SecretHeader = "X-Codelet-Secret"

// maxAuthAttempts closes a websocket after this many bad signatures
const maxAuthAttempts = 3

// AuthHandler checks the shared secret. HTTP requests present it directly;
// websocket clients answer an HMAC-SHA256 challenge so the secret never
// crosses the wire. An empty secret disables authentication.
type AuthHandler struct {
	sharedSecret string
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(sharedSecret string) *AuthHandler {
	return &AuthHandler{
		sharedSecret: sharedSecret,
	}
}

// Enabled reports whether a secret is configured
func (a *AuthHandler) Enabled() bool {
	return a.sharedSecret != ""
}

// AuthorizeRequest checks the secret header of an HTTP request
func (a *AuthHandler) AuthorizeRequest(r *http.Request) bool {
	if !a.Enabled() {
		return true
	}
	given := r.Header.Get(SecretHeader)
	return subtle.ConstantTimeCompare([]byte(given), []byte(a.sharedSecret)) == 1
}

// GenerateChallenge generates a cryptographically random 32-byte challenge
func (a *AuthHandler) GenerateChallenge() (string, error) {
	challenge := make([]byte, 32)
	if _, err := rand.Read(challenge); err != nil {
		return "", fmt.Errorf("failed to generate challenge: %w", err)
	}
	return hex.EncodeToString(challenge), nil
}

// Sign computes the expected signature for a challenge
func Sign(secret, challenge string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(challenge))
	return hex.EncodeToString(h.Sum(nil))
}

// VerifySignature verifies an HMAC-SHA256 signature against a challenge
func (a *AuthHandler) VerifySignature(challenge, signature string) bool {
	expected := Sign(a.sharedSecret, challenge)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

// HandleAuthResponse processes a client's answer to its challenge and
// returns the event to send back.
func (a *AuthHandler) HandleAuthResponse(client *Client, signature string) EventMessage {
	if client.Challenge == "" {
		return EventMessage{Event: EventAuthFailure, Message: "No challenge found"}
	}

	if !a.VerifySignature(client.Challenge, signature) {
		client.AuthAttempts++
		if client.AuthAttempts >= maxAuthAttempts {
			return EventMessage{Event: EventAuthFailure, Message: "Too many failed attempts"}
		}
		return EventMessage{Event: EventAuthFailure, Message: "Invalid signature"}
	}

	client.Authenticated = true
	client.State = StateAuthenticated
	client.AuthAttempts = 0
	client.Challenge = ""
	return EventMessage{Event: EventAuthSuccess}
}
