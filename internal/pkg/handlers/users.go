package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gofiber/fiber/v2/log"

	"github.com/fixmarket/corelink/internal/pkg/apiclient"
)

// UsersHandler absorbs user lifecycle events into the marketplace
// collections. A user lives in exactly one of /users (clients),
// /providers or /admins depending on its role; updates and deactivations
// first resolve which collection holds the external id.
type UsersHandler struct {
	api *apiclient.Client
}

func NewUsersHandler(api *apiclient.Client) *UsersHandler {
	return &UsersHandler{api: api}
}

type userAddress struct {
	State     string `json:"state,omitempty"`
	City      string `json:"city,omitempty"`
	Street    string `json:"street,omitempty"`
	Number    any    `json:"number,omitempty"`
	Floor     any    `json:"floor,omitempty"`
	Apartment any    `json:"apartment,omitempty"`
}

type userPayload struct {
	UserID      json.Number   `json:"userId"`
	Role        string        `json:"role"`
	FirstName   string        `json:"firstName"`
	LastName    string        `json:"lastName"`
	Email       string        `json:"email"`
	Password    string        `json:"password"`
	PhoneNumber string        `json:"phoneNumber"`
	DNI         string        `json:"dni"`
	Photo       string        `json:"photo"`
	Active      *bool         `json:"active"`
	Addresses   []userAddress `json:"addresses"`
}

func (h *UsersHandler) Handle(ctx context.Context, eventName string, body []byte) (Result, error) {
	var envelope struct {
		Payload userPayload `json:"payload"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return skipped("payload does not decode: " + err.Error()), nil
	}
	data := envelope.Payload

	switch eventName {
	case "user_created":
		return h.create(ctx, data)
	case "user_updated":
		return h.update(ctx, data)
	case "user_deactivated":
		return h.deactivate(ctx, data)
	case "user_rejected":
		// Nothing to mirror locally for a rejected registration.
		return skipped("user_rejected needs no action"), nil
	default:
		log.Infof("[Users] Unhandled event: %s", eventName)
		return skipped("unhandled event " + eventName), nil
	}
}

func (h *UsersHandler) create(ctx context.Context, data userPayload) (Result, error) {
	externalID, err := strconv.Atoi(data.UserID.String())
	if err != nil {
		log.Errorf("[Users] user_created without valid userId: %q", data.UserID.String())
		return skipped("missing or invalid userId"), nil
	}

	role := roleOf(data)
	body := map[string]any{
		"external_id": externalID,
		"first_name":  data.FirstName,
		"last_name":   data.LastName,
	}

	var path string
	switch role {
	case "client":
		path = "/users"
		body["dni"] = data.DNI
		body["phone"] = data.PhoneNumber
		attachAddresses(body, data.Addresses, 2)
	case "provider":
		path = "/providers"
		body["email"] = data.Email
		body["password"] = data.Password
		body["phone"] = data.PhoneNumber
		body["dni"] = data.DNI
		body["photo"] = data.Photo
		attachAddresses(body, data.Addresses, 1)
	case "admin":
		path = "/admins"
		body["email"] = data.Email
		body["password"] = data.Password
		body["photo"] = data.Photo
		if data.Active != nil {
			body["active"] = *data.Active
		}
	default:
		log.Infof("[Users] Unknown role %q for user %d", role, externalID)
		return skipped("unknown role " + role), nil
	}

	ok, err := h.api.Send(ctx, http.MethodPost, path, body)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return rejected(fmt.Sprintf("create %s %d refused", role, externalID)), nil
	}
	return applied(fmt.Sprintf("created %s %d", role, externalID)), nil
}

func (h *UsersHandler) update(ctx context.Context, data userPayload) (Result, error) {
	externalID, err := strconv.Atoi(data.UserID.String())
	if err != nil {
		log.Errorf("[Users] user_updated without valid userId: %q", data.UserID.String())
		return skipped("missing or invalid userId"), nil
	}

	found, err := h.resolve(ctx, externalID)
	if err != nil {
		return Result{}, err
	}
	if found == nil {
		log.Warnf("[Users] External id %d not found in any collection, cannot update", externalID)
		return skipped("external id not found"), nil
	}

	patch := map[string]any{}
	setIfPresent(patch, "first_name", data.FirstName)
	setIfPresent(patch, "last_name", data.LastName)
	setIfPresent(patch, "email", data.Email)
	setIfPresent(patch, "password", data.Password)
	setIfPresent(patch, "phone", data.PhoneNumber)
	setIfPresent(patch, "dni", data.DNI)
	setIfPresent(patch, "photo", data.Photo)
	if len(data.Addresses) > 0 {
		limit := 1
		if found.path == "/users" {
			limit = 2
		}
		attachAddresses(patch, data.Addresses, limit)
	}

	ok, err := h.api.Send(ctx, http.MethodPatch, fmt.Sprintf("%s/%d", found.path, found.internalID), patch)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return rejected(fmt.Sprintf("update %s %d refused", found.role, externalID)), nil
	}
	return applied(fmt.Sprintf("updated %s %d", found.role, externalID)), nil
}

func (h *UsersHandler) deactivate(ctx context.Context, data userPayload) (Result, error) {
	externalID, err := strconv.Atoi(data.UserID.String())
	if err != nil {
		log.Errorf("[Users] user_deactivated without valid userId: %q", data.UserID.String())
		return skipped("missing or invalid userId"), nil
	}

	found, err := h.resolve(ctx, externalID)
	if err != nil {
		return Result{}, err
	}
	if found == nil {
		log.Warnf("[Users] External id %d not found in any collection, cannot deactivate", externalID)
		return skipped("external id not found"), nil
	}

	ok, err := h.api.Send(ctx, http.MethodDelete, fmt.Sprintf("%s/%d", found.path, found.internalID), nil)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return rejected(fmt.Sprintf("deactivate %s %d refused", found.role, externalID)), nil
	}
	return applied(fmt.Sprintf("deactivated %s %d", found.role, externalID)), nil
}

type resolvedUser struct {
	role       string
	path       string
	internalID int
}

// resolve probes the three collections for the hub-side user id. Probe
// errors on one collection are logged and the next one is tried; only
// when every collection failed do we give up with an error.
func (h *UsersHandler) resolve(ctx context.Context, externalID int) (*resolvedUser, error) {
	probes := []struct {
		role string
		path string
	}{
		{"client", "/users"},
		{"provider", "/providers"},
		{"admin", "/admins"},
	}

	var lastErr error
	failures := 0
	for _, probe := range probes {
		query := url.Values{"external_id": {strconv.Itoa(externalID)}}

		var matches []struct {
			ID int `json:"id"`
		}
		if err := h.api.GetJSON(ctx, probe.path, query, &matches); err != nil {
			log.Errorf("[Users] Lookup in %s failed: %v", probe.path, err)
			lastErr = err
			failures++
			continue
		}
		if len(matches) > 0 && matches[0].ID != 0 {
			log.Infof("[Users] External id %d found in %s", externalID, probe.path)
			return &resolvedUser{role: probe.role, path: probe.path, internalID: matches[0].ID}, nil
		}
	}

	if failures == len(probes) {
		return nil, lastErr
	}
	return nil, nil
}

func roleOf(data userPayload) string {
	if data.Role == "" {
		return "client"
	}
	return data.Role
}

func setIfPresent(patch map[string]any, key, value string) {
	if value != "" {
		patch[key] = value
	}
}

func attachAddresses(body map[string]any, addresses []userAddress, limit int) {
	if len(addresses) == 0 {
		return
	}
	if len(addresses) > limit {
		addresses = addresses[:limit]
	}
	body["addresses"] = addresses
}
