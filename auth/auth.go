package auth

import (
	"net/http"

	firebase "firebase.google.com/go/v4"
)

// Authenticate verifies the Firebase ID token carried in the request's
// Authorization header and returns the uid it was minted for.
func Authenticate(req *http.Request) (string, error) {
	ctx := req.Context()
	app, err := firebase.NewApp(ctx, nil)
	if err != nil {
		return "", err
	}

	client, err := app.Auth(ctx)
	if err != nil {
		return "", err
	}

	jwtToken, err := bearerTokenFromRequest(req)
	if err != nil {
		return "", err
	}

	token, err := client.VerifyIDToken(ctx, jwtToken)
	if err != nil {
		return "", err
	}
	return token.UID, nil
}
