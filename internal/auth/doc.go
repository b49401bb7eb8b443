// Package auth provides user registration, password login and token
// authentication for huddle.
//
// # Credentials
//
// Credentials registers users under a client-chosen positive integer id and
// stores a bcrypt hash of the password. Authenticate returns the same
// chaterr.ErrInvalidCredentials for an unknown id and for a wrong password, and
// runs a dummy bcrypt comparison on a miss so both paths take similar time.
//
// # Tokens
//
// When a jwt_secret is configured, a successful login also returns an HS256
// JWT whose subject is the user id:
//
//	verifier, err := NewJWTVerifier(secret)
//	token, err := verifier.Generate(user.ID, 24*time.Hour)
//
// HTTPAuthMiddleware verifies the token from the Authorization header (or the
// access_token query parameter for WebSocket upgrades) and stores an
// AuthContext in the request context:
//
//	authCtx := auth.FromContext(r.Context())
package auth
