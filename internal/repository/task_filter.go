package repository

import (
	"fmt"
	"strings"

	"tasknotes/internal/model"
)

const taskListSelect = `
        SELECT
            t.id,
            t.subject,
            t.description,
            to_char(t.start_date, 'YYYY-MM-DD'),
            to_char(t.due_date, 'YYYY-MM-DD'),
            t.status,
            t.priority,
            t.created_at,
            t.updated_at,
            COUNT(n.id) AS notes_count
        FROM tasks t
        JOIN notes n ON n.task_id = t.id`

// BuildTaskListQuery composes the listing query for filter. Only tasks with at least
// one note are returned. Rows are ordered by priority rank, then note count
// (descending), then id.
func BuildTaskListQuery(filter model.TaskFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if filter.Status != "" {
		add("t.status = $%d", string(filter.Status))
	}
	if filter.Priority != "" {
		add("t.priority = $%d", string(filter.Priority))
	}
	if filter.DueDate != "" {
		add("t.due_date = $%d::date", filter.DueDate)
	}

	var sb strings.Builder
	sb.WriteString(taskListSelect)
	if len(where) > 0 {
		sb.WriteString("\n        WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	sb.WriteString("\n        GROUP BY t.id")
	sb.WriteString("\n        ORDER BY ")
	sb.WriteString(priorityRankExpr("t.priority"))
	sb.WriteString(", notes_count DESC, t.id ASC")

	return sb.String(), args
}

// priorityRankExpr renders model.PriorityRank as a CASE expression over col.
// Unknown values sort last.
func priorityRankExpr(col string) string {
	var sb strings.Builder
	sb.WriteString("CASE ")
	sb.WriteString(col)
	for _, p := range model.Priorities {
		fmt.Fprintf(&sb, " WHEN '%s' THEN %d", p, model.PriorityRank[model.Priority(p)])
	}
	fmt.Fprintf(&sb, " ELSE %d END", len(model.PriorityRank))
	return sb.String()
}
