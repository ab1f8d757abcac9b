package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"reflect"
	"testing"

	"tasknotes/internal/service/task"
)

func readUpload(t *testing.T, up task.Upload) string {
	t.Helper()
	rc, err := up.Open()
	if err != nil {
		t.Fatalf("open %s: %v", up.Filename, err)
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func parseMultipart(t *testing.T, fields [][2]string, files [][3]string) *multipart.Form {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			t.Fatal(err)
		}
	}
	for _, f := range files {
		fw, err := w.CreateFormFile(f[0], f[1])
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write([]byte(f[2])); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest("POST", "/tasks/create", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if err := req.ParseMultipartForm(1 << 20); err != nil {
		t.Fatalf("ParseMultipartForm: %v", err)
	}
	return req.MultipartForm
}

func TestFromMultipart(t *testing.T) {
	form := parseMultipart(t,
		[][2]string{
			{"subject", "Report"},
			{"description", "Q3"},
			{"start_date", "01-10-2024"},
			{"due_date", "22-10-2024"},
			{"status", "new"},
			{"priority", "high"},
			{"notes[1][subject]", "second"},
			{"notes[1][note]", "b"},
			{"notes[0][subject]", "first"},
			{"notes[0][note]", "a"},
		},
		[][3]string{
			{"notes[0][attachments][]", "one.txt", "1"},
			{"notes[0][attachments][]", "two.txt", "22"},
			{"notes[1][attachments][]", "three.txt", "333"},
		},
	)

	in, err := fromMultipart(form)
	if err != nil {
		t.Fatalf("fromMultipart: %v", err)
	}
	if in.Subject != "Report" || in.DueDate != "22-10-2024" || in.Priority != "high" {
		t.Fatalf("top level fields = %+v", in)
	}
	if len(in.Notes) != 2 || in.Notes[0].Subject != "first" || in.Notes[1].Subject != "second" {
		t.Fatalf("notes = %+v", in.Notes)
	}

	var names []string
	for _, up := range in.Notes[0].Attachments {
		names = append(names, up.Filename)
	}
	if !reflect.DeepEqual(names, []string{"one.txt", "two.txt"}) {
		t.Fatalf("note 0 attachments = %v", names)
	}
	if got := readUpload(t, in.Notes[0].Attachments[1]); got != "22" {
		t.Errorf("content = %q", got)
	}
	if in.Notes[1].Attachments[0].Size != 3 {
		t.Errorf("size = %d", in.Notes[1].Attachments[0].Size)
	}
}

func TestFromMultipartNoteWithoutFiles(t *testing.T) {
	form := parseMultipart(t, [][2]string{{"notes[0][subject]", "s"}, {"notes[0][note]", "n"}}, nil)
	in, err := fromMultipart(form)
	if err != nil || len(in.Notes) != 1 || in.Notes[0].Attachments != nil {
		t.Fatalf("notes = %+v, %v", in.Notes, err)
	}
}

func TestFromMultipartKeepsNoteIndexes(t *testing.T) {
	form := parseMultipart(t,
		[][2]string{{"notes[2][subject]", "third"}, {"notes[2][note]", "c"}},
		[][3]string{{"notes[2][attachments][]", "c.txt", "c"}},
	)
	in, err := fromMultipart(form)
	if err != nil {
		t.Fatalf("fromMultipart: %v", err)
	}
	if len(in.Notes) != 3 {
		t.Fatalf("notes = %+v", in.Notes)
	}
	if in.Notes[2].Subject != "third" || len(in.Notes[2].Attachments) != 1 {
		t.Fatalf("note 2 = %+v", in.Notes[2])
	}
	if in.Notes[0].Subject != "" || in.Notes[1].Attachments != nil {
		t.Fatalf("missing notes should stay empty: %+v", in.Notes[:2])
	}
}

func TestFromMultipartRejectsHugeNoteIndex(t *testing.T) {
	form := parseMultipart(t, [][2]string{{"notes[100000][subject]", "s"}}, nil)
	if _, err := fromMultipart(form); !errors.Is(err, errNoteIndex) {
		t.Fatalf("err = %v, want errNoteIndex", err)
	}
}

func decodeCreate(t *testing.T, body string) task.CreateTaskInput {
	t.Helper()
	var req createTaskRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return req.input()
}

func TestCreateRequestInput(t *testing.T) {
	in := decodeCreate(t, `{
		"subject": "Report",
		"description": "Q3",
		"start_date": "01-10-2024",
		"due_date": "22-10-2024",
		"status": "new",
		"priority": "low",
		"notes": [
			{"subject": "first", "note": "a", "attachments": [{"filename": "a.txt", "content": "aGVsbG8="}]}
		]
	}`)
	if len(in.Notes) != 1 || len(in.Notes[0].Attachments) != 1 {
		t.Fatalf("notes = %+v", in.Notes)
	}
	up := in.Notes[0].Attachments[0]
	if up.Filename != "a.txt" || up.Size != 5 || readUpload(t, up) != "hello" {
		t.Fatalf("upload = %+v", up)
	}
}

func TestCreateRequestInputBadAttachments(t *testing.T) {
	in := decodeCreate(t, `{"notes": [{"subject": "s", "note": "n", "attachments": [
		{"filename": "a.txt", "content": "%%%"},
		{"content": "aGVsbG8="},
		{"filename": "ok.txt", "content": "aGVsbG8="}
	]}]}`)
	ups := in.Notes[0].Attachments
	if len(ups) != 3 {
		t.Fatalf("attachments = %+v", ups)
	}
	if ups[0].Open != nil || ups[1].Open != nil || ups[2].Open == nil {
		t.Fatalf("only the last attachment should be readable: %+v", ups)
	}
}
