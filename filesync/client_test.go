package filesync_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"

	"github.com/shibukawa/notesql/filesync"
)

type recorded struct {
	method      string
	path        string
	userAgent   string
	contentType string
	body        map[string]string
}

// newSidecar stands up a fake sidecar that records the request and
// answers with the given status and body.
func newSidecar(t *testing.T, status int, responseBody string) (*filesync.Client, *recorded) {
	t.Helper()

	rec := &recorded{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.method = r.Method
		rec.path = r.URL.Path
		rec.userAgent = r.Header.Get("User-Agent")
		rec.contentType = r.Header.Get("Content-Type")

		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&rec.body)
		}

		w.WriteHeader(status)
		_, _ = w.Write([]byte(responseBody))
	}))
	t.Cleanup(srv.Close)

	return filesync.NewClient(filesync.WithBaseURL(srv.URL + "/api")), rec
}

func TestPull(t *testing.T) {
	client, rec := newSidecar(t, http.StatusOK, `{"message": "Success"}`)

	msg, err := client.FS(filesync.KindProject).Pull(t.Context(), "foo/bar")
	assert.NoError(t, err)
	assert.Equal(t, "Success", msg.Message)
	assert.Equal(t, http.MethodPost, rec.method)
	assert.Equal(t, "/api/v0/fs/project/foo/bar/pull", rec.path)
	assert.Equal(t, "notesql-kernel-magics", rec.userAgent)
}

func TestPush(t *testing.T) {
	client, rec := newSidecar(t, http.StatusOK, `{"message": "Success"}`)

	msg, err := client.FS(filesync.KindProject).Push(t.Context(), "foo/bar")
	assert.NoError(t, err)
	assert.Equal(t, "Success", msg.Message)
	assert.Equal(t, http.MethodPost, rec.method)
	assert.Equal(t, "/api/v0/fs/project/foo/bar/push", rec.path)
}

func TestPushDatasetPathWithSpaces(t *testing.T) {
	client, rec := newSidecar(t, http.StatusOK, `{"message": "Success"}`)

	_, err := client.FS(filesync.KindDataset).Push(t.Context(), "My first dataset/data.csv")
	assert.NoError(t, err)
	assert.Equal(t, "/api/v0/fs/dataset/My first dataset/data.csv/push", rec.path)
}

func TestDelete(t *testing.T) {
	client, rec := newSidecar(t, http.StatusOK, `{"message": "Deleted"}`)

	msg, err := client.FS(filesync.KindProject).Delete(t.Context(), "foo/bar")
	assert.NoError(t, err)
	assert.Equal(t, "Deleted", msg.Message)
	assert.Equal(t, http.MethodDelete, rec.method)
	assert.Equal(t, "/api/v0/fs/project/foo/bar", rec.path)
}

func TestMoveSendsDestination(t *testing.T) {
	client, rec := newSidecar(t, http.StatusOK, `{"message": "Moved"}`)

	msg, err := client.FS(filesync.KindProject).Move(t.Context(), "old.txt", "new.txt")
	assert.NoError(t, err)
	assert.Equal(t, "Moved", msg.Message)
	assert.Equal(t, http.MethodPost, rec.method)
	assert.Equal(t, "/api/v0/fs/project/old.txt/move", rec.path)
	assert.Equal(t, "application/json", rec.contentType)
	assert.Equal(t, map[string]string{"to": "new.txt"}, rec.body)
}

func TestStatus(t *testing.T) {
	client, rec := newSidecar(t, http.StatusOK,
		`{"file_changes": [{"change_type": "added", "path": "a.txt"}, {"change_type": "modified", "path": "b.txt"}]}`)

	status, err := client.FS(filesync.KindProject).Status(t.Context(), "foo")
	assert.NoError(t, err)
	assert.Equal(t, http.MethodGet, rec.method)
	assert.Equal(t, "/api/v0/fs/project/foo/status", rec.path)

	assert.True(t, status.HasChanges())
	assert.Equal(t, 2, len(status.FileChanges))
	assert.Equal(t, filesync.ChangeAdded, status.FileChanges[0].ChangeType)
	assert.Equal(t, "+ a.txt", status.FileChanges[0].String())
	assert.Equal(t, "~ b.txt", status.FileChanges[1].String())
}

func TestStatusNoChanges(t *testing.T) {
	client, _ := newSidecar(t, http.StatusOK, `{"file_changes": []}`)

	status, err := client.FS(filesync.KindProject).Status(t.Context(), "foo")
	assert.NoError(t, err)
	assert.False(t, status.HasChanges())
}

func TestFailureStatusReturnsAPIError(t *testing.T) {
	client, _ := newSidecar(t, http.StatusInternalServerError, `{"detail": "boom"}`)

	_, err := client.FS(filesync.KindProject).Pull(t.Context(), "foo")
	assert.IsError(t, err, filesync.ErrAPIError)

	var apiErr *filesync.APIError

	assert.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, `{"detail": "boom"}`, apiErr.Body)
	assert.Equal(t, "pull files", apiErr.Operation)
	assert.Contains(t, apiErr.UserError(), "error code 500")
}

func TestUndecodableSuccessBody(t *testing.T) {
	client, _ := newSidecar(t, http.StatusOK, "plain text, not json")

	_, err := client.FS(filesync.KindProject).Pull(t.Context(), "foo")
	assert.IsError(t, err, filesync.ErrBadResponse)
}

func TestJSONStringBodyIsStillBad(t *testing.T) {
	client, _ := newSidecar(t, http.StatusOK, `"just a string"`)

	_, err := client.FS(filesync.KindProject).Pull(t.Context(), "foo")
	assert.IsError(t, err, filesync.ErrBadResponse)
}

func TestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"message": "too late"}`))
	}))
	t.Cleanup(srv.Close)

	client := filesync.NewClient(
		filesync.WithBaseURL(srv.URL+"/api"),
		filesync.WithTimeout(20*time.Millisecond),
	)

	_, err := client.FS(filesync.KindProject).Pull(t.Context(), "foo")
	assert.IsError(t, err, filesync.ErrTimeout)
}

func TestDefaults(t *testing.T) {
	client := filesync.NewClient()
	assert.Equal(t, "http://localhost:7000/api/v0/", client.BaseURL())

	versioned := filesync.NewClient(filesync.WithVersion("v1"))
	assert.Equal(t, "http://localhost:7000/api/v1/", versioned.BaseURL())
}

func TestChangeTypePrefixes(t *testing.T) {
	assert.Equal(t, "+", filesync.ChangeAdded.Prefix())
	assert.Equal(t, "~", filesync.ChangeModified.Prefix())
	assert.Equal(t, "-", filesync.ChangeDeleted.Prefix())
	assert.Equal(t, "", filesync.ChangeType("renamed").Prefix())
}
