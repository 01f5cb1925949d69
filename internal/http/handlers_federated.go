package httpx

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/target/mmk-auth-api/internal/service"
)

const (
	oauthStateCookie = "oauth_state"
	oauthCookieAge   = 600 // 10 minutes
)

var errFederatedFailed = errors.New("federated login failed")

// FederatedLogin starts the identity provider handshake.
// GET /api/v1/auth/oauth2/login?redirect_uri=<optional_redirect>.
func (h *AuthHandlers) FederatedLogin(w http.ResponseWriter, r *http.Request) {
	redirectURI := safeRedirectPath(r.URL.Query().Get("redirect_uri"))

	result, err := h.Svc.BeginFederatedLogin(r.Context(), redirectURI)
	if err != nil {
		writeServiceError(w, r, h.logger(), err)
		return
	}

	// Bind the handshake to this browser.
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    result.State,
		Path:     "/",
		Domain:   h.CookieDomain,
		HttpOnly: true,
		Secure:   isSecure(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   oauthCookieAge,
	})

	http.Redirect(w, r, result.AuthURL, http.StatusFound)
}

// FederatedCallback completes the handshake and issues a token for the provisioned user.
// GET /api/v1/auth/oauth2/callback?code=<code>&state=<state>.
func (h *AuthHandlers) FederatedCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		h.logger().WarnContext(r.Context(), "identity provider returned error",
			"error", e,
			"description", q.Get("error_description"))
		h.clearCookie(w, r, oauthStateCookie)
		w.Header().Set("WWW-Authenticate", `Bearer realm="mmk-auth"`)
		WriteError(w, ErrorParams{Code: http.StatusUnauthorized, ErrCode: "unauthenticated", Err: errFederatedFailed})
		return
	}

	in := service.CompleteLoginInput{Code: q.Get("code"), State: q.Get("state")}
	if c, err := r.Cookie(oauthStateCookie); err == nil {
		in.BoundState = c.Value
	}
	h.clearCookie(w, r, oauthStateCookie)

	res, err := h.Svc.CompleteFederatedLogin(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, h.logger(), err)
		return
	}

	if h.SuccessRedirectURL == "" {
		WriteJSON(w, http.StatusOK, newAuthResponse(res))
		return
	}

	target, err := url.Parse(h.SuccessRedirectURL)
	if err != nil {
		writeServiceError(w, r, h.logger(), err)
		return
	}
	frag := url.Values{}
	frag.Set("token", res.Token.Token)
	frag.Set("redirect", safeRedirectPath(res.Redirect))
	target.Fragment = frag.Encode()
	http.Redirect(w, r, target.String(), http.StatusFound)
}

// clearCookie clears a cookie by setting it to expire immediately.
// It mirrors key attributes (Secure, Path, Domain, SameSite) used when setting cookies.
func (h *AuthHandlers) clearCookie(w http.ResponseWriter, r *http.Request, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   h.CookieDomain,
		HttpOnly: true,
		Secure:   isSecure(r),
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
		SameSite: http.SameSiteLaxMode,
	})
}
