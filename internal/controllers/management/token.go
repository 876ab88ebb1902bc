package management

import "github.com/google/uuid"

// generateAuthToken returns a random access token.
func generateAuthToken() string {
	return uuid.NewString()
}
