package tagging

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"
	"testing"

	"closet/internal/domain"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func respond(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func request() domain.Request {
	return domain.Request{
		ID:        "req-1",
		Kind:      domain.KindCategorization,
		Inputs:    []domain.ImageRef{{Path: "/photos/shirt.png", Data: []byte("png"), MIME: "image/png"}},
		ColorHint: []string{"Blue"},
	}
}

func TestClassifierSendsHintAndMerges(t *testing.T) {
	var captured classifyRequest
	var auth string
	client := NewClassifier(Options{
		Endpoint: "https://tagging.example.com/v1/tag",
		APIKey:   "tok",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			auth = r.Header.Get("Authorization")
			if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
				t.Errorf("decode: %v", err)
			}
			return respond(http.StatusOK, `{"category":"Tops","subcategory":"Shirt","season":"Summer, Spring","occasion":"Casual","tags":"cotton"}`), nil
		})},
	})

	got, err := client.Attempt(context.Background(), request())
	if err != nil {
		t.Fatalf("Attempt error: %v", err)
	}
	if auth != "Bearer tok" {
		t.Fatalf("authorization = %q", auth)
	}
	if captured.ImageFormat != "png" || !reflect.DeepEqual(captured.DetectedColors, []string{"Blue"}) || captured.Image == "" {
		t.Fatalf("unexpected request body %+v", captured)
	}
	want := domain.Categorization{
		Category:    "Tops",
		Subcategory: "Shirt",
		Colors:      []string{"Blue"},
		Seasons:     []string{"Summer", "Spring"},
		Occasions:   []string{"Casual"},
		Tags:        []string{"cotton"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Attempt = %+v, want %+v", got, want)
	}
}

func TestClassifierOmitsAuthorizationWithoutKey(t *testing.T) {
	client := NewClassifier(Options{
		Endpoint: "https://tagging.example.com",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			if r.Header.Get("Authorization") != "" {
				t.Errorf("unexpected authorization header")
			}
			return respond(http.StatusOK, `{}`), nil
		})},
	})
	if _, err := client.Attempt(context.Background(), request()); err != nil {
		t.Fatalf("Attempt error: %v", err)
	}
}

func TestClassifierErrorClasses(t *testing.T) {
	cases := []struct {
		status int
		body   string
		want   error
	}{
		{http.StatusUnauthorized, `bad token`, domain.ErrAuthRejected},
		{http.StatusBadGateway, `Authentication is required`, domain.ErrAuthRejected},
		{http.StatusInternalServerError, `boom`, domain.ErrProviderFailure},
		{http.StatusOK, `not json`, domain.ErrProviderFailure},
	}
	for _, tc := range cases {
		client := NewClassifier(Options{
			Endpoint: "https://tagging.example.com",
			HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
				return respond(tc.status, tc.body), nil
			})},
		})
		_, err := client.Attempt(context.Background(), request())
		if !errors.Is(err, tc.want) {
			t.Fatalf("status %d: expected %v, got %v", tc.status, tc.want, err)
		}
	}
}

func TestClassifierRequiresEndpoint(t *testing.T) {
	client := NewClassifier(Options{HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		t.Fatal("no request expected")
		return nil, nil
	})}})
	if _, err := client.Attempt(context.Background(), request()); !errors.Is(err, domain.ErrConfigurationMissing) {
		t.Fatalf("expected ErrConfigurationMissing, got %v", err)
	}
}
