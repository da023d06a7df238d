package link

import "fmt"

// Failure is the explanation of an OAuth error code.
type Failure struct {
	Code  string
	User  string
	Debug string
}

type failureRule struct {
	code  string
	user  string
	debug string
	// keepDetails prefers the redirect's details over debug when present.
	keepDetails bool
}

// failureTable is matched in order; the first code match wins.
var failureTable = []failureRule{
	{
		code:  "access_denied",
		user:  "Gmail authentication was cancelled. You can try connecting again anytime.",
		debug: "User denied access during OAuth2 flow.",
	},
	{
		code:  "no_code",
		user:  "Gmail authentication failed - no authorization received.",
		debug: "OAuth2 callback did not receive authorization code.",
	},
	{
		code:        "auth_failed",
		user:        "Gmail authentication failed during token exchange.",
		debug:       "Token exchange with Google failed.",
		keepDetails: true,
	},
	{
		code:        "server_error",
		user:        "Gmail authentication failed due to a server error.",
		debug:       "Backend server error during OAuth2 processing.",
		keepDetails: true,
	},
}

const unknownFailureText = "Gmail authentication failed. Please try again."

// Classify explains an OAuth error code. Unknown codes keep the raw code
// in the debug text.
func Classify(code, details string) Failure {
	for _, r := range failureTable {
		if r.code != code {
			continue
		}
		debug := r.debug
		if r.keepDetails && details != "" {
			debug = details
		}
		return Failure{Code: code, User: r.user, Debug: debug}
	}

	debug := "Unknown error: " + code
	if details != "" {
		debug += " (" + details + ")"
	}
	return Failure{Code: code, User: unknownFailureText, Debug: debug}
}

// Text renders the transcript message for the failure.
func (f Failure) Text(sessionID string) string {
	return fmt.Sprintf("❌ **Gmail Authentication Error**\n\n%s\n\n"+
		"🔧 **Debug Info**: %s\n"+
		"🆔 **Session**: %s\n\n"+
		"💡 **Next Steps**: Check the \"Connect Gmail\" button above shows the correct status, or try the authentication flow again.",
		f.User, f.Debug, sessionID)
}
