package identity

import (
	"context"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"personastudio/internal/domain"
)

type jwks struct {
	Keys []jwk `json:"keys"`
}

type jwk struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// ProfileSource resolves the profile behind an access token.
type ProfileSource interface {
	GetUser(ctx context.Context, accessToken string) (*domain.User, error)
}

// VerifierOptions configures access-token verification for a user pool.
type VerifierOptions struct {
	// Issuer overrides the pool issuer URL derived from Region and UserPoolID.
	Issuer     string
	Region     string
	UserPoolID string
	ClientID   string
	Profiles   ProfileSource
	HTTPClient *http.Client
}

type cachedProfile struct {
	user    domain.User
	expires time.Time
}

// Verifier checks access tokens against the user pool signing keys and maps
// them to user profiles. Profiles are cached per token until it expires.
type Verifier struct {
	issuer     string
	clientID   string
	profiles   ProfileSource
	httpClient *http.Client
	now        func() time.Time

	mu      sync.RWMutex
	keys    map[string]*rsa.PublicKey
	fetched time.Time

	cacheMu sync.Mutex
	cache   map[string]cachedProfile
}

func NewVerifier(opts VerifierOptions) (*Verifier, error) {
	issuer := strings.TrimRight(strings.TrimSpace(opts.Issuer), "/")
	if issuer == "" {
		if opts.Region == "" || opts.UserPoolID == "" {
			return nil, errors.New("identity: region and user pool id are required")
		}
		issuer = fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", opts.Region, opts.UserPoolID)
	}
	if opts.Profiles == nil {
		return nil, errors.New("identity: profile source is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Verifier{
		issuer:     issuer,
		clientID:   opts.ClientID,
		profiles:   opts.Profiles,
		httpClient: httpClient,
		now:        time.Now,
		keys:       make(map[string]*rsa.PublicKey),
		cache:      make(map[string]cachedProfile),
	}, nil
}

// Verify validates token and returns its user. Any failure wraps
// domain.ErrAuthenticationRequired.
func (v *Verifier) Verify(ctx context.Context, token string) (*domain.User, error) {
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (any, error) {
			kid, _ := t.Header["kid"].(string)
			return v.key(ctx, kid)
		},
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", domain.ErrAuthenticationRequired, err)
	}
	if use, _ := claims["token_use"].(string); use != "access" {
		return nil, fmt.Errorf("%w: token_use %q", domain.ErrAuthenticationRequired, use)
	}
	if v.clientID != "" {
		if cid, _ := claims["client_id"].(string); cid != v.clientID {
			return nil, fmt.Errorf("%w: client mismatch", domain.ErrAuthenticationRequired)
		}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, fmt.Errorf("%w: missing expiry", domain.ErrAuthenticationRequired)
	}

	cacheKey := tokenHash(token)
	if user, ok := v.cached(cacheKey); ok {
		return user, nil
	}
	user, err := v.profiles.GetUser(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrAuthenticationRequired) {
			return nil, err
		}
		return nil, fmt.Errorf("identity: resolve profile: %w", err)
	}
	v.store(cacheKey, *user, exp.Time)
	return user, nil
}

func (v *Verifier) cached(key string) (*domain.User, bool) {
	v.cacheMu.Lock()
	defer v.cacheMu.Unlock()
	entry, ok := v.cache[key]
	if !ok {
		return nil, false
	}
	if !v.now().Before(entry.expires) {
		delete(v.cache, key)
		return nil, false
	}
	user := entry.user
	return &user, true
}

func (v *Verifier) store(key string, user domain.User, expires time.Time) {
	v.cacheMu.Lock()
	defer v.cacheMu.Unlock()
	now := v.now()
	for k, entry := range v.cache {
		if !now.Before(entry.expires) {
			delete(v.cache, k)
		}
	}
	v.cache[key] = cachedProfile{user: user, expires: expires}
}

func (v *Verifier) key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	if err := v.ensureKeys(ctx); err != nil {
		return nil, err
	}
	if key, ok := v.keyFor(kid); ok {
		return key, nil
	}
	// Keys rotate; a miss triggers one refetch before giving up.
	if err := v.refresh(ctx); err != nil {
		return nil, err
	}
	if key, ok := v.keyFor(kid); ok {
		return key, nil
	}
	return nil, errors.New("unknown kid")
}

func (v *Verifier) ensureKeys(ctx context.Context) error {
	v.mu.RLock()
	fresh := time.Since(v.fetched) < time.Hour && len(v.keys) > 0
	v.mu.RUnlock()
	if fresh {
		return nil
	}
	return v.refresh(ctx)
}

func (v *Verifier) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.issuer+"/.well-known/jwks.json", nil)
	if err != nil {
		return err
	}
	resp, err := v.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch jwks: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("fetch jwks: status %d", resp.StatusCode)
	}
	var set jwks
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return fmt.Errorf("decode jwks: %w", err)
	}
	keys := make(map[string]*rsa.PublicKey)
	for _, key := range set.Keys {
		if key.Kty != "RSA" {
			continue
		}
		pub, err := rsaKeyFromJWK(key)
		if err != nil {
			continue
		}
		keys[key.Kid] = pub
	}
	if len(keys) == 0 {
		return errors.New("no keys fetched")
	}
	v.mu.Lock()
	v.keys = keys
	v.fetched = time.Now()
	v.mu.Unlock()
	return nil
}

func (v *Verifier) keyFor(kid string) (*rsa.PublicKey, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	pk, ok := v.keys[kid]
	return pk, ok
}

func rsaKeyFromJWK(j jwk) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(j.N)
	if err != nil {
		return nil, err
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(j.E)
	if err != nil {
		return nil, err
	}
	e := 0
	for _, b := range eBytes {
		e = e<<8 + int(b)
	}
	if e == 0 {
		return nil, errors.New("invalid exponent")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nBytes), E: e}, nil
}

func tokenHash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
