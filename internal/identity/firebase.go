package identity

import (
	"context"
	"os"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"github.com/example/roadside-matching/internal/models"
)

// FirebaseConfig selects the Firebase project used to check ID tokens.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string // service account JSON, optional
}

// NewFirebaseAuth initializes the Firebase app and returns its auth client.
func NewFirebaseAuth(ctx context.Context, cfg FirebaseConfig) (*fbauth.Client, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		creds, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, option.WithCredentialsJSON(creds))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, err
	}
	return app.Auth(ctx)
}

// FirebaseVerifier checks Firebase ID tokens. The account role and display
// name come from the "role" and "name" custom claims.
type FirebaseVerifier struct {
	client *fbauth.Client
}

func NewFirebaseVerifier(client *fbauth.Client) *FirebaseVerifier {
	return &FirebaseVerifier{client: client}
}

func (v *FirebaseVerifier) Verify(ctx context.Context, idToken string) (models.Account, error) {
	token, err := v.client.VerifyIDTokenAndCheckRevoked(ctx, idToken)
	if err != nil {
		switch {
		case fbauth.IsCertificateFetchFailed(err):
			return models.Account{}, ErrCertificateFetch
		case fbauth.IsIDTokenExpired(err):
			return models.Account{}, ErrTokenExpired
		case fbauth.IsIDTokenRevoked(err):
			return models.Account{}, ErrTokenRevoked
		case fbauth.IsUserDisabled(err):
			return models.Account{}, ErrUserDisabled
		default:
			return models.Account{}, ErrInvalidToken
		}
	}
	return accountFromClaims(token.UID, token.Claims)
}

func accountFromClaims(uid string, claims map[string]any) (models.Account, error) {
	rawRole, _ := claims["role"].(string)
	role, err := parseRole(rawRole)
	if err != nil {
		return models.Account{}, err
	}
	name, _ := claims["name"].(string)
	email, _ := claims["email"].(string)
	phone, _ := claims["phone_number"].(string)
	return models.Account{ID: uid, Role: role, Name: name, Email: email, Phone: phone}, nil
}

var _ Verifier = (*FirebaseVerifier)(nil)
