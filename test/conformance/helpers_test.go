//go:build conformance

package conformance

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"
	"time"
)

// apiURL builds a full URL for the given API path, e.g. "/photos".
func apiURL(path string) string {
	return strings.TrimRight(baseURL, "/") + path
}

// doRequest performs an HTTP request and returns the response.
func doRequest(t *testing.T, req *http.Request) *http.Response {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

// doJSON performs an HTTP request and returns the decoded JSON as map[string]any.
func doJSON(t *testing.T, method, url string, body io.Reader) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+authToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return decode(t, doRequest(t, req))
}

// doIDs sends {"photoIds": ids} and returns the decoded JSON.
func doIDs(t *testing.T, method, url string, ids ...string) (int, map[string]any) {
	t.Helper()
	data, err := json.Marshal(map[string][]string{"photoIds": ids})
	if err != nil {
		t.Fatalf("marshal ids: %v", err)
	}
	return doJSON(t, method, url, bytes.NewReader(data))
}

// doMultipartUpload uploads a photo under fileID and returns the decoded JSON.
func doMultipartUpload(t *testing.T, fileID string, fileContent []byte, fileName string) (int, map[string]any) {
	t.Helper()
	body, contentType := multipartBody(t, fileID, fileName, fileContent)
	req, err := http.NewRequest("POST", apiURL("/photos"), body)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+authToken)
	req.Header.Set("Content-Type", contentType)
	return decode(t, doRequest(t, req))
}

func decode(t *testing.T, resp *http.Response) (int, map[string]any) {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal JSON: %v\nbody: %s", err, string(data))
	}
	return resp.StatusCode, raw
}

// multipartBody builds an upload form with a fileId field and a file field.
func multipartBody(t *testing.T, fileID, fileName string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if fileID != "" {
		if err := w.WriteField("fileId", fileID); err != nil {
			t.Fatalf("write fileId: %v", err)
		}
	}
	fw, err := w.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatalf("write content: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, w.FormDataContentType()
}

// testJPEG encodes a small gradient image.
func testJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 48, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 48; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 5), G: uint8(y * 7), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

// uniqueID returns a fileId that will not collide with earlier runs.
func uniqueID(t *testing.T) string {
	name := strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			return r
		}
		return '-'
	}, t.Name())
	if len(name) > 80 {
		name = name[:80]
	}
	return fmt.Sprintf("%s-%d", name, time.Now().UnixNano())
}

// assertEnvelopeShape validates the response envelope structure shared by
// every JSON endpoint.
func assertEnvelopeShape(t *testing.T, raw map[string]any) {
	t.Helper()

	if _, ok := raw["result"]; !ok {
		t.Error("envelope missing 'result' field")
	}

	success, ok := raw["success"]
	if !ok {
		t.Error("envelope missing 'success' field")
	} else if _, ok := success.(bool); !ok {
		t.Errorf("'success' should be bool, got %T", success)
	}

	for _, field := range []string{"errors", "messages"} {
		list, ok := raw[field]
		if !ok {
			t.Errorf("envelope missing %q field", field)
			continue
		}
		arr, ok := list.([]any)
		if !ok {
			t.Errorf("%q should be array, got %T", field, list)
			continue
		}
		for i, e := range arr {
			obj, ok := e.(map[string]any)
			if !ok {
				t.Errorf("%s[%d] should be object, got %T", field, i, e)
				continue
			}
			if _, ok := obj["code"]; !ok {
				t.Errorf("%s[%d] missing 'code'", field, i)
			}
			if _, ok := obj["message"]; !ok {
				t.Errorf("%s[%d] missing 'message'", field, i)
			}
		}
	}
}

// assertField validates a field exists in an object and has the expected Go type.
// Returns the typed value.
func assertField[T any](t *testing.T, obj map[string]any, field string) T {
	t.Helper()
	val, ok := obj[field]
	if !ok {
		var zero T
		t.Errorf("missing field %q", field)
		return zero
	}
	typed, ok := val.(T)
	if !ok {
		var zero T
		t.Errorf("field %q: expected %T, got %T (%v)", field, zero, val, val)
		return zero
	}
	return typed
}

// resultObject returns raw["result"] as an object.
func resultObject(t *testing.T, raw map[string]any) map[string]any {
	t.Helper()
	result, ok := raw["result"].(map[string]any)
	if !ok {
		t.Fatalf("result is not object: %T", raw["result"])
	}
	return result
}

// photoID returns the id of an uploaded photo record.
func photoID(t *testing.T, rec map[string]any) string {
	t.Helper()
	photo, ok := rec["photo"].(map[string]any)
	if !ok {
		t.Fatalf("record missing photo object: %v", rec)
	}
	id, ok := photo["id"].(string)
	if !ok || id == "" {
		t.Fatalf("photo missing id: %v", photo)
	}
	return id
}

// uploadAndCleanup uploads a test photo and registers a cleanup that trashes
// and then destroys it. Returns the result object of the upload response.
func uploadAndCleanup(t *testing.T) map[string]any {
	t.Helper()
	status, raw := doMultipartUpload(t, uniqueID(t), testJPEG(t), "test.jpg")
	if status != http.StatusCreated {
		t.Fatalf("upload failed with status %d: %v", status, raw)
	}
	result := resultObject(t, raw)
	id := photoID(t, result)

	t.Cleanup(func() {
		// Either call may fail depending on what the test left behind.
		cleanupIDs("POST", apiURL("/trash"), id)
		cleanupIDs("DELETE", apiURL("/trash/permanent"), id)
	})
	return result
}

// createGroupAndCleanup creates a group and registers its deletion.
func createGroupAndCleanup(t *testing.T, title string) map[string]any {
	t.Helper()
	body := fmt.Sprintf(`{"title":%q}`, title)
	status, raw := doJSON(t, "POST", apiURL("/groups"), strings.NewReader(body))
	if status != http.StatusCreated {
		t.Fatalf("create group failed with status %d: %v", status, raw)
	}
	result := resultObject(t, raw)
	id, _ := result["id"].(string)

	t.Cleanup(func() {
		req, _ := http.NewRequest("DELETE", apiURL("/groups"), strings.NewReader(fmt.Sprintf(`{"groupIds":[%q]}`, id)))
		req.Header.Set("Authorization", "Bearer "+authToken)
		req.Header.Set("Content-Type", "application/json")
		resp, err := http.DefaultClient.Do(req)
		if err == nil {
			resp.Body.Close()
		}
	})
	return result
}

func cleanupIDs(method, url, id string) {
	req, _ := http.NewRequest(method, url, strings.NewReader(fmt.Sprintf(`{"photoIds":[%q]}`, id)))
	req.Header.Set("Authorization", "Bearer "+authToken)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err == nil {
		resp.Body.Close()
	}
}

// containsString reports whether the JSON array holds s.
func containsString(arr []any, s string) bool {
	for _, v := range arr {
		if v == s {
			return true
		}
	}
	return false
}

// assertErrorCode checks that the envelope carries at least one error and
// that every error code equals the HTTP status.
func assertErrorCode(t *testing.T, raw map[string]any, status int) {
	t.Helper()
	errs, ok := raw["errors"].([]any)
	if !ok || len(errs) == 0 {
		t.Fatalf("errors should be a non-empty array, got %v", raw["errors"])
	}
	for i, e := range errs {
		obj, _ := e.(map[string]any)
		code, ok := obj["code"].(float64)
		if !ok || int(code) != status {
			t.Errorf("errors[%d].code = %v, want %d", i, obj["code"], status)
		}
		if msg, _ := obj["message"].(string); msg == "" {
			t.Errorf("errors[%d].message should be non-empty", i)
		}
	}
}
