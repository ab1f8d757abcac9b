package task

import (
	"strconv"

	"tasknotes/internal/model"
	"tasknotes/internal/validation"
)

func (s *Service) createSchema() validation.Schema {
	return validation.Schema{
		{Key: "subject", Rules: []validation.Rule{validation.Required, validation.Max(255)}},
		{Key: "description", Rules: []validation.Rule{validation.Required}},
		{Key: "start_date", Rules: []validation.Rule{validation.Required, validation.DateFormat(s.dates)}},
		{Key: "due_date", Rules: []validation.Rule{validation.Required, validation.DateFormat(s.dates)}},
		{Key: "status", Rules: []validation.Rule{validation.Required, validation.In(model.Statuses...)}},
		{Key: "priority", Rules: []validation.Rule{validation.Required, validation.In(model.Priorities...)}},
		{Key: "notes", Rules: []validation.Rule{validation.Required, validation.IsList}},
		{Key: "notes.*.subject", Rules: []validation.Rule{validation.Required, validation.Max(255)}},
		{Key: "notes.*.note", Rules: []validation.Rule{validation.Required}},
		{Key: "notes.*.attachments", Rules: []validation.Rule{validation.Required, validation.IsList}},
		{Key: "notes.*.attachments.*", Rules: []validation.Rule{validation.IsFile, validation.Max(s.maxFileKB)}},
	}
}

// notAFile stands for an attachment entry that is present but not a file.
type notAFile struct{}

func createValues(in CreateTaskInput) validation.Values {
	v := validation.Values{
		"subject":     in.Subject,
		"description": in.Description,
		"start_date":  in.StartDate,
		"due_date":    in.DueDate,
		"status":      in.Status,
		"priority":    in.Priority,
	}
	if in.Notes != nil {
		v["notes"] = validation.List(len(in.Notes))
	}
	for i, n := range in.Notes {
		prefix := "notes." + strconv.Itoa(i)
		v[prefix+".subject"] = n.Subject
		v[prefix+".note"] = n.Note
		if n.Attachments != nil {
			v[prefix+".attachments"] = validation.List(len(n.Attachments))
		}
		for j, up := range n.Attachments {
			key := prefix + ".attachments." + strconv.Itoa(j)
			if up.Open == nil {
				v[key] = notAFile{}
				continue
			}
			v[key] = &validation.File{Name: up.Filename, Size: up.Size}
		}
	}
	return v
}

func (s *Service) listSchema() validation.Schema {
	return validation.Schema{
		{Key: "filter.status", Rules: []validation.Rule{validation.In(model.Statuses...)}},
		{Key: "filter.priority", Rules: []validation.Rule{validation.In(model.Priorities...)}},
		{Key: "filter.due_date", Rules: []validation.Rule{validation.DateFormat(s.dates)}},
	}
}

func listValues(in ListTasksInput) validation.Values {
	return validation.Values{
		"filter.status":   in.Status,
		"filter.priority": in.Priority,
		"filter.due_date": in.DueDate,
	}
}

func fieldNames(errs *validation.Errors) []string {
	names := make([]string, 0, len(errs.Fields()))
	for f := range errs.Fields() {
		names = append(names, f)
	}
	return names
}
