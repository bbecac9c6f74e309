// Package v1beta1 implements the Kubernetes authentication.k8s.io/v1beta1
// TokenReview contract with a strict codec: the schema is closed, unknown
// fields are rejected, and apiVersion/kind are validated against the pinned
// constants on decode rather than silently defaulted.
package v1beta1

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const (
	// APIVersion is the only API version this codec accepts or emits.
	APIVersion = "authentication.k8s.io/v1beta1"

	// Kind is the only resource kind this codec accepts or emits.
	Kind = "TokenReview"
)

// TokenReview is the webhook authentication request/response envelope.
// TokenReview requests may be cached by the webhook token authenticator
// plugin in the kube-apiserver.
type TokenReview struct {
	Spec   TokenReviewSpec
	Status *TokenReviewStatus
}

// TokenReviewSpec carries the bearer token under review.
type TokenReviewSpec struct {
	Token string `json:"token"`
}

// TokenReviewStatus is the authenticator's decision. Authenticated is a
// tri-state: nil means no decision was made, which is distinct from an
// explicit deny.
type TokenReviewStatus struct {
	Authenticated *bool     `json:"authenticated,omitempty"`
	Audiences     []string  `json:"audiences,omitempty"`
	Error         string    `json:"error,omitempty"`
	User          *UserInfo `json:"user,omitempty"`
}

// UserInfo is the identity attached to an authenticated decision. All
// fields are optional; absence means unknown, not empty.
type UserInfo struct {
	Username string              `json:"username,omitempty"`
	UID      string              `json:"uid,omitempty"`
	Groups   []string            `json:"groups,omitempty"`
	Extra    map[string][]string `json:"extra,omitempty"`
}

// Denied returns a status that explicitly rejects the token. No user and
// no error detail: callers must not be able to distinguish a bad signature
// from an expired token through the response.
func Denied() *TokenReviewStatus {
	authenticated := false
	return &TokenReviewStatus{Authenticated: &authenticated}
}

// Accepted returns a status that authenticates the token as the given user.
// Audiences lists the identifiers this authenticator considers compatible;
// empty means the server default applies.
func Accepted(user UserInfo, audiences []string) *TokenReviewStatus {
	authenticated := true
	return &TokenReviewStatus{
		Authenticated: &authenticated,
		Audiences:     audiences,
		User:          &user,
	}
}

// MarshalJSON emits apiVersion and kind first, then spec, then status only
// when present. An absent status omits the key entirely rather than
// serializing null.
func (tr TokenReview) MarshalJSON() ([]byte, error) {
	type envelope struct {
		APIVersion string             `json:"apiVersion"`
		Kind       string             `json:"kind"`
		Spec       TokenReviewSpec    `json:"spec"`
		Status     *TokenReviewStatus `json:"status,omitempty"`
	}

	return json.Marshal(envelope{
		APIVersion: APIVersion,
		Kind:       Kind,
		Spec:       tr.Spec,
		Status:     tr.Status,
	})
}

// UnmarshalJSON decodes a TokenReview document, enforcing the closed schema.
// Recognized keys are apiVersion, kind, spec and status; any other key is an
// *UnknownFieldError. apiVersion, kind and spec are required and apiVersion
// and kind must match the pinned constants.
func (tr *TokenReview) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("decoding TokenReview: %w", err)
	}

	for key := range fields {
		switch key {
		case "apiVersion", "kind", "spec", "status":
		default:
			return &UnknownFieldError{Field: key}
		}
	}

	rawVersion, ok := fields["apiVersion"]
	if !ok {
		return &MissingFieldError{Field: "apiVersion"}
	}

	var apiVersion string
	if err := json.Unmarshal(rawVersion, &apiVersion); err != nil {
		return fmt.Errorf("decoding apiVersion: %w", err)
	}

	if apiVersion != APIVersion {
		return &InvalidAPIVersionError{Expected: APIVersion, Got: apiVersion}
	}

	rawKind, ok := fields["kind"]
	if !ok {
		return &MissingFieldError{Field: "kind"}
	}

	var kind string
	if err := json.Unmarshal(rawKind, &kind); err != nil {
		return fmt.Errorf("decoding kind: %w", err)
	}

	if kind != Kind {
		return &InvalidKindError{Expected: Kind, Got: kind}
	}

	rawSpec, ok := fields["spec"]
	if !ok {
		return &MissingFieldError{Field: "spec"}
	}

	var spec TokenReviewSpec
	if err := spec.UnmarshalJSON(rawSpec); err != nil {
		return err
	}

	// A null status decodes to absent, same as the key being missing.
	var status *TokenReviewStatus
	if rawStatus, ok := fields["status"]; ok && !bytes.Equal(rawStatus, []byte("null")) {
		status = &TokenReviewStatus{}
		if err := strictUnmarshal(rawStatus, status); err != nil {
			return fmt.Errorf("decoding status: %w", err)
		}
	}

	tr.Spec = spec
	tr.Status = status

	return nil
}

// UnmarshalJSON decodes a TokenReviewSpec. The only recognized key is
// token, and it must be present and non-empty.
func (s *TokenReviewSpec) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("decoding spec: %w", err)
	}

	for key := range fields {
		if key != "token" {
			return &UnknownFieldError{Field: "spec." + key}
		}
	}

	rawToken, ok := fields["token"]
	if !ok {
		return &MissingFieldError{Field: "spec.token"}
	}

	var token string
	if err := json.Unmarshal(rawToken, &token); err != nil {
		return fmt.Errorf("decoding spec.token: %w", err)
	}

	if token == "" {
		return &MissingFieldError{Field: "spec.token"}
	}

	s.Token = token

	return nil
}

// strictUnmarshal decodes into v rejecting unknown fields at every level.
func strictUnmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	return dec.Decode(v)
}
