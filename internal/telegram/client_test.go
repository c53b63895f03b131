package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(baseURL string) *Client {
	c := NewClient("test-token")
	c.apiBase = baseURL
	return c
}

func okResult(w http.ResponseWriter, result interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"ok":     true,
		"result": result,
	})
}

func TestCreateInviteLinkPayload(t *testing.T) {
	var payload map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bottest-token/createChatInviteLink" {
			t.Errorf("Expected path /bottest-token/createChatInviteLink, got %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("Failed to decode payload: %v", err)
		}
		okResult(w, map[string]interface{}{"invite_link": "https://t.me/+abc"})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	expiresAt := time.Now().Add(2 * time.Hour)

	link, err := client.CreateInviteLink(context.Background(), -100500, expiresAt)
	if err != nil {
		t.Fatalf("Failed to create invite link: %v", err)
	}
	if link != "https://t.me/+abc" {
		t.Errorf("Expected invite link https://t.me/+abc, got %s", link)
	}

	// One redemption per invite, no exceptions.
	if limit, ok := payload["member_limit"].(float64); !ok || limit != 1 {
		t.Errorf("Expected member_limit 1, got %v", payload["member_limit"])
	}
	expire, ok := payload["expire_date"].(float64)
	if !ok {
		t.Fatalf("Expected numeric expire_date, got %v", payload["expire_date"])
	}
	if int64(expire) != expiresAt.Unix() {
		t.Errorf("Expected expire_date %d, got %d", expiresAt.Unix(), int64(expire))
	}
}

func TestDeleteMessagesChunksAtBatchLimit(t *testing.T) {
	var batches []int

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			MessageIDs []int64 `json:"message_ids"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("Failed to decode payload: %v", err)
		}
		batches = append(batches, len(payload.MessageIDs))
		okResult(w, true)
	}))
	defer server.Close()

	ids := make([]int64, 230)
	for i := range ids {
		ids[i] = int64(i + 1)
	}

	client := newTestClient(server.URL)
	if err := client.DeleteMessages(context.Background(), -100500, ids); err != nil {
		t.Fatalf("Failed to delete messages: %v", err)
	}

	want := []int{100, 100, 30}
	if len(batches) != len(want) {
		t.Fatalf("Expected %d batches, got %d", len(want), len(batches))
	}
	for i, size := range want {
		if batches[i] != size {
			t.Errorf("Expected batch %d to carry %d IDs, got %d", i, size, batches[i])
		}
	}
}

func TestDeleteMessagesContinuesPastFailedBatch(t *testing.T) {
	var calls int

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]interface{}{
				"ok":          false,
				"error_code":  400,
				"description": "message to delete not found",
			})
			return
		}
		okResult(w, true)
	}))
	defer server.Close()

	ids := make([]int64, 150)
	for i := range ids {
		ids[i] = int64(i + 1)
	}

	client := newTestClient(server.URL)
	err := client.DeleteMessages(context.Background(), -100500, ids)

	if calls != 2 {
		t.Errorf("Expected both batches attempted, got %d calls", calls)
	}
	if err == nil {
		t.Fatal("Expected error from the failed batch")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected *APIError, got %T", err)
	}
	if !IsBenign(apiErr) {
		t.Error("Expected the delete failure to classify as benign")
	}
}

func TestCallReturnsAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"ok":          false,
			"error_code":  403,
			"description": "Forbidden: bot was kicked",
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.GetChatMember(context.Background(), -100500, 42)
	if err == nil {
		t.Fatal("Expected error")
	}

	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("Expected *APIError, got %T", err)
	}
	if apiErr.ErrorCode != 403 {
		t.Errorf("Expected error code 403, got %d", apiErr.ErrorCode)
	}
	if apiErr.Method != "getChatMember" {
		t.Errorf("Expected method getChatMember, got %s", apiErr.Method)
	}
}

func TestIsBenign(t *testing.T) {
	cases := []struct {
		description string
		benign      bool
	}{
		{"Bad Request: USER_NOT_PARTICIPANT", true},
		{"Bad Request: PARTICIPANT_ID_INVALID", true},
		{"Bad Request: user not found", true},
		{"Bad Request: not enough rights to restrict/unrestrict chat member", true},
		{"Bad Request: chat member status can't be changed", true},
		{"Bad Request: message to delete not found", true},
		{"Forbidden: bot was kicked from the supergroup chat", false},
		{"Too Many Requests: retry after 30", false},
	}

	for _, tc := range cases {
		err := &APIError{Method: "banChatMember", ErrorCode: 400, Description: tc.description}
		if got := IsBenign(err); got != tc.benign {
			t.Errorf("IsBenign(%q) = %v, want %v", tc.description, got, tc.benign)
		}
	}

	if IsBenign(errors.New("user not found")) {
		t.Error("Plain errors must never classify as benign")
	}
	if IsBenign(nil) {
		t.Error("nil must not classify as benign")
	}
}
