package handler

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"regexp"
	"sort"
	"strconv"

	"tasknotes/internal/service/task"
)

// notesKey matches multipart keys such as notes[0][subject] and
// notes[0][attachments][] or notes[0][attachments][1].
var notesKey = regexp.MustCompile(`^notes\[(\d+)\]\[(subject|note|attachments)\](?:\[(\d*)\])?$`)

// maxNoteIndex bounds the note index accepted in multipart keys.
const maxNoteIndex = 255

var errNoteIndex = errors.New("note index out of range")

// fromMultipart builds the create input from a parsed multipart form. A note
// keeps the index given in its keys, so notes[2][subject] is validated as
// notes.2.subject and missing indexes below it fail as empty notes.
// Attachments keep form order, or their explicit index when one is given.
func fromMultipart(form *multipart.Form) (task.CreateTaskInput, error) {
	in := task.CreateTaskInput{
		Subject:     formValue(form, "subject"),
		Description: formValue(form, "description"),
		StartDate:   formValue(form, "start_date"),
		DueDate:     formValue(form, "due_date"),
		Status:      formValue(form, "status"),
		Priority:    formValue(form, "priority"),
	}

	type fileAt struct {
		pos int
		fh  *multipart.FileHeader
	}
	type noteParts struct {
		note  task.NoteInput
		files []fileAt
		seen  bool
	}
	notes := map[int]*noteParts{}
	get := func(i int) *noteParts {
		if notes[i] == nil {
			notes[i] = &noteParts{}
		}
		return notes[i]
	}

	for key, vals := range form.Value {
		m := notesKey.FindStringSubmatch(key)
		if m == nil || len(vals) == 0 || m[3] != "" {
			continue
		}
		i, err := noteIndex(m[1])
		if err != nil {
			return in, err
		}
		switch m[2] {
		case "subject":
			get(i).note.Subject = vals[0]
		case "note":
			get(i).note.Note = vals[0]
		}
	}

	for key, fhs := range form.File {
		m := notesKey.FindStringSubmatch(key)
		if m == nil || m[2] != "attachments" {
			continue
		}
		i, err := noteIndex(m[1])
		if err != nil {
			return in, err
		}
		np := get(i)
		np.seen = true
		explicit := 0
		if m[3] != "" {
			explicit, _ = strconv.Atoi(m[3])
		}
		for k, fh := range fhs {
			// explicit index first, then position under the same key
			np.files = append(np.files, fileAt{pos: explicit<<16 | k, fh: fh})
		}
	}

	if len(notes) == 0 {
		return in, nil
	}
	last := 0
	for i := range notes {
		last = max(last, i)
	}

	in.Notes = make([]task.NoteInput, last+1)
	for i, np := range notes {
		sort.SliceStable(np.files, func(a, b int) bool { return np.files[a].pos < np.files[b].pos })
		if np.seen {
			np.note.Attachments = make([]task.Upload, 0, len(np.files))
		}
		for _, f := range np.files {
			np.note.Attachments = append(np.note.Attachments, multipartUpload(f.fh))
		}
		in.Notes[i] = np.note
	}
	return in, nil
}

func noteIndex(s string) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil || i > maxNoteIndex {
		return 0, fmt.Errorf("%w: notes[%s]", errNoteIndex, s)
	}
	return i, nil
}

func formValue(form *multipart.Form, key string) string {
	if vals := form.Value[key]; len(vals) > 0 {
		return vals[0]
	}
	return ""
}

func multipartUpload(fh *multipart.FileHeader) task.Upload {
	return task.Upload{
		Filename: fh.Filename,
		Size:     fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

type jsonAttachment struct {
	Filename string `json:"filename"`
	Content  string `json:"content"` // base64
}

type jsonNote struct {
	Subject     string           `json:"subject"`
	Note        string           `json:"note"`
	Attachments []jsonAttachment `json:"attachments"`
}

type createTaskRequest struct {
	Subject     string     `json:"subject"`
	Description string     `json:"description"`
	StartDate   string     `json:"start_date"`
	DueDate     string     `json:"due_date"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	Notes       []jsonNote `json:"notes"`
}

// input converts a JSON create request. An attachment without a filename or
// with content that is not base64 is passed on without Open, which validation
// reports as not being a file.
func (req *createTaskRequest) input() task.CreateTaskInput {
	in := task.CreateTaskInput{
		Subject:     req.Subject,
		Description: req.Description,
		StartDate:   req.StartDate,
		DueDate:     req.DueDate,
		Status:      req.Status,
		Priority:    req.Priority,
	}
	if req.Notes == nil {
		return in
	}

	in.Notes = make([]task.NoteInput, len(req.Notes))
	for i, n := range req.Notes {
		in.Notes[i] = task.NoteInput{Subject: n.Subject, Note: n.Note}
		if n.Attachments == nil {
			continue
		}
		in.Notes[i].Attachments = make([]task.Upload, len(n.Attachments))
		for j, a := range n.Attachments {
			data, err := base64.StdEncoding.DecodeString(a.Content)
			if err != nil || a.Filename == "" {
				in.Notes[i].Attachments[j] = task.Upload{Filename: a.Filename}
				continue
			}
			in.Notes[i].Attachments[j] = bytesUpload(a.Filename, data)
		}
	}
	return in
}

func bytesUpload(name string, data []byte) task.Upload {
	return task.Upload{
		Filename: name,
		Size:     int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}
