package camerad

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
)

// newTestClient spins up a fake controller HTTP API and a client
// pointed at it.
func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatal(err)
	}

	c := NewClient(port)
	c.baseURL = srv.URL
	return c
}

func TestClientHealth(t *testing.T) {
	healthy := true
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			http.NotFound(w, r)
			return
		}
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	if err := client.Health(context.Background()); err != nil {
		t.Fatalf("healthy probe failed: %v", err)
	}

	healthy = false
	if err := client.Health(context.Background()); err == nil {
		t.Fatal("expected error from unhealthy controller")
	}
}

func TestClientHealth_Unreachable(t *testing.T) {
	client := NewClient(1) // nothing listens on port 1

	err := client.Health(context.Background())
	if !errors.Is(err, ErrControllerUnavailable) {
		t.Fatalf("err = %v, want ErrControllerUnavailable", err)
	}
}

func TestClientListCameras(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cameras" {
			http.NotFound(w, r)
			return
		}
		//nolint:errcheck // Test server write
		json.NewEncoder(w).Encode([]CameraInfo{
			{HardwareID: "usb-0420", Model: "PTZ Pro", Connected: true},
			{HardwareID: "usb-0421", Model: "PTZ Pro", Connected: false},
		})
	}))

	cameras, err := client.ListCameras(context.Background())
	if err != nil {
		t.Fatalf("ListCameras: %v", err)
	}
	if len(cameras) != 2 {
		t.Fatalf("got %d cameras, want 2", len(cameras))
	}
	if cameras[0].HardwareID != "usb-0420" || !cameras[0].Connected {
		t.Errorf("unexpected first camera: %+v", cameras[0])
	}
}

func TestClientDo_RelaysVerbatim(t *testing.T) {
	var gotMethod, gotPath, gotBody string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		var buf [64]byte
		n, _ := r.Body.Read(buf[:]) //nolint:errcheck // Test read
		gotBody = string(buf[:n])

		w.WriteHeader(http.StatusTeapot)
		//nolint:errcheck // Test server write
		w.Write([]byte(`{"vendor":"weird payload the core must not touch"}`))
	}))

	resp, err := client.Do(context.Background(), http.MethodPost, "/cameras/usb-0420/ptz", []byte(`{"pan":10}`))
	if err != nil {
		t.Fatalf("Do: %v", err)
	}

	if gotMethod != http.MethodPost || gotPath != "/cameras/usb-0420/ptz" {
		t.Errorf("relayed %s %s", gotMethod, gotPath)
	}
	if gotBody != `{"pan":10}` {
		t.Errorf("relayed body = %q", gotBody)
	}
	// Status and body pass through untouched, teapot and all.
	if resp.StatusCode != http.StatusTeapot {
		t.Errorf("status = %d, want 418", resp.StatusCode)
	}
	if string(resp.Body) != `{"vendor":"weird payload the core must not touch"}` {
		t.Errorf("body = %s", resp.Body)
	}
}
