package services

import "github.com/avissapr/firmdesk/internal/models"

// Identity is the caller as vouched for by the session or bearer token.
// Role is re-read from the store on every request; the value here is only what
// the credential claimed.
type Identity struct {
	UserID int
	Role   models.Role
}
