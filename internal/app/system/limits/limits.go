// internal/app/system/limits/limits.go
package limits

// Request body size limits for the JSON API.
// Passed to respond.DecodeJSON; oversized bodies are rejected with 400.
const (
	// MaxAuthBody bounds login, signup and password requests.
	MaxAuthBody = 8 << 10 // 8 KB

	// MaxAdminBody bounds school, member and invite requests.
	MaxAdminBody = 16 << 10 // 16 KB

	// MaxPushBody bounds push broadcasts and subscription registrations.
	MaxPushBody = 64 << 10 // 64 KB
)
