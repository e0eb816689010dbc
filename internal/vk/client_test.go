package vk

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	client := NewClient("test_token", "5.131")
	client.SetAPIBase(server.URL)
	return client, server
}

func TestSearchCandidateHit(t *testing.T) {
	var form url.Values
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/method/users.search" {
			t.Errorf("path = %s, want /method/users.search", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		form = r.PostForm
		w.Write([]byte(`{"response":{"count":1,"items":[{"id":101,"first_name":"Анна","last_name":"Иванова"}]}}`))
	})
	defer server.Close()

	candidate, err := client.SearchCandidate(context.Background(), 25, SexFemale, 1, 3)
	if err != nil {
		t.Fatal(err)
	}
	if candidate == nil {
		t.Fatal("expected a candidate")
	}
	if candidate.ID != 101 {
		t.Errorf("id = %d, want 101", candidate.ID)
	}
	if candidate.Name() != "Анна Иванова" {
		t.Errorf("name = %q", candidate.Name())
	}
	if candidate.ProfileLink() != "https://vk.com/id101" {
		t.Errorf("link = %q", candidate.ProfileLink())
	}

	for key, want := range map[string]string{
		"age_from": "25", "age_to": "25", "sex": "1", "city": "1",
		"offset": "3", "count": "1", "has_photo": "1",
		"access_token": "test_token", "v": "5.131",
	} {
		if got := form.Get(key); got != want {
			t.Errorf("param %s = %q, want %q", key, got, want)
		}
	}
}

func TestSearchCandidateMissReturnsNil(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response":{"count":0,"items":[]}}`))
	})
	defer server.Close()

	candidate, err := client.SearchCandidate(context.Background(), 30, SexMale, 2, 0)
	if err != nil {
		t.Fatal(err)
	}
	if candidate != nil {
		t.Fatalf("expected nil candidate, got %+v", candidate)
	}
}

func TestTopPhotosRanksByLikes(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response":{"count":4,"items":[
			{"id":1,"owner_id":101,"likes":{"count":5}},
			{"id":2,"owner_id":101,"likes":{"count":50}},
			{"id":3,"owner_id":101,"likes":{"count":50}},
			{"id":4,"owner_id":101,"likes":{"count":12}}
		]}}`))
	})
	defer server.Close()

	refs, err := client.TopPhotos(context.Background(), 101, 3)
	if err != nil {
		t.Fatal(err)
	}
	// Ties keep API order: photo 2 before photo 3.
	want := []string{"photo101_2", "photo101_3", "photo101_4"}
	if len(refs) != len(want) {
		t.Fatalf("got %d refs, want %d", len(refs), len(want))
	}
	for i := range want {
		if refs[i] != want[i] {
			t.Errorf("refs[%d] = %q, want %q", i, refs[i], want[i])
		}
	}
}

func TestTopPhotosLimitLargerThanResult(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response":{"count":1,"items":[{"id":7,"owner_id":9,"likes":{"count":1}}]}}`))
	})
	defer server.Close()

	refs, err := client.TopPhotos(context.Background(), 9, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 1 || refs[0] != "photo9_7" {
		t.Errorf("refs = %v", refs)
	}
}

func TestGetUser(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response":[{"id":55,"first_name":"Пётр","last_name":"Сидоров"}]}`))
	})
	defer server.Close()

	user, err := client.GetUser(context.Background(), 55)
	if err != nil {
		t.Fatal(err)
	}
	if user.ID != 55 || user.FirstName != "Пётр" {
		t.Errorf("user = %+v", user)
	}
}

func TestSendMessageParams(t *testing.T) {
	var form url.Values
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		form = r.PostForm
		w.Write([]byte(`{"response":12345}`))
	})
	defer server.Close()

	err := client.SendMessage(context.Background(), OutboundMessage{
		PeerID:     77,
		Text:       "Введите город:",
		Attachment: "photo1_2,photo1_3",
		Keyboard:   StartKeyboard(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if form.Get("user_id") != "77" {
		t.Errorf("user_id = %q", form.Get("user_id"))
	}
	if form.Get("attachment") != "photo1_2,photo1_3" {
		t.Errorf("attachment = %q", form.Get("attachment"))
	}
	if form.Get("random_id") == "" {
		t.Error("random_id missing")
	}
	if form.Get("keyboard") == "" {
		t.Error("keyboard missing")
	}
}

func TestAPIErrorEnvelope(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"error_code":5,"error_msg":"User authorization failed"}}`))
	})
	defer server.Close()

	_, err := client.SearchCandidate(context.Background(), 25, SexMale, 1, 0)
	if err == nil {
		t.Fatal("expected error for API error envelope")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error %v does not wrap *APIError", err)
	}
	if apiErr.Code != 5 {
		t.Errorf("code = %d, want 5", apiErr.Code)
	}
}

func TestUnexpectedStatus(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	defer server.Close()

	if err := client.SendMessage(context.Background(), OutboundMessage{PeerID: 1, Text: "x"}); err == nil {
		t.Fatal("expected error for non-200 status")
	}
}
