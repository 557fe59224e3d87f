// Package oauth turns stored Google grants into authorized HTTP clients.
//
// Token acquisition happens elsewhere. This package only reads a stored
// grant, which is either a bare access token or the JSON encoding of an
// oauth2.Token, and hands back an *http.Client that attaches it. When the
// grant carries a refresh token and client credentials are configured, the
// client refreshes expired access tokens transparently.
//
//	g := oauth.NewGoogle(oauth.GoogleConfig{
//		ClientID:     os.Getenv("GOOGLE_OAUTH_CLIENT_ID"),
//		ClientSecret: os.Getenv("GOOGLE_OAUTH_CLIENT_SECRET"),
//	})
//
//	client, err := g.Client(ctx, storedGrant)
//	if err != nil {
//		return err
//	}
//	resp, err := client.Post(gmailSendURL, "application/json", body)
package oauth
