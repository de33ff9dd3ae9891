package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/esig/task-manager/internal/core/domain"
	"github.com/esig/task-manager/internal/core/ports"
)

// errorResponse is the standard error envelope returned on all 4xx/5xx responses.
type errorResponse struct {
	Error string `json:"error"`
}

// --- Auth ---

type credentialsRequest struct {
	Username string `json:"username" validate:"required,notblank,max=50"`
	Password string `json:"password" validate:"required,max=72"`
}

type authResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"tokenType"`
	Role      string `json:"role"`
}

func toAuthResponse(r *ports.AuthResult) authResponse {
	return authResponse{Token: r.Token, TokenType: r.TokenType, Role: string(r.Role)}
}

// --- Tasks ---

type taskRequest struct {
	Title       string  `json:"title"       validate:"required,notblank,max=200"`
	Description string  `json:"description" validate:"max=2000"`
	Responsible string  `json:"responsible" validate:"max=100"`
	Priority    string  `json:"priority"`
	Deadline    string  `json:"deadline"    validate:"omitempty,datetime=2006-01-02"`
	Status      string  `json:"status"`
	OwnerID     *string `json:"ownerId"`
}

type taskPatchRequest struct {
	Title       *string `json:"title"       validate:"omitnil,notblank,max=200"`
	Description *string `json:"description" validate:"omitnil,max=2000"`
	Responsible *string `json:"responsible" validate:"omitnil,max=100"`
	Priority    *string `json:"priority"`
	Deadline    *string `json:"deadline"    validate:"omitnil,datetime=2006-01-02"`
	Status      *string `json:"status"`
	OwnerID     *string `json:"ownerId"`
}

type ownerResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type taskResponse struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Responsible string        `json:"responsible"`
	Priority    string        `json:"priority"`
	Deadline    string        `json:"deadline,omitempty"`
	Status      string        `json:"status"`
	Overdue     bool          `json:"overdue"`
	Owner       ownerResponse `json:"owner"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// --- Mapping ---

func toTaskInput(req taskRequest) (ports.TaskInput, error) {
	in := ports.TaskInput{
		Title:       req.Title,
		Description: req.Description,
		Responsible: req.Responsible,
		OwnerID:     req.OwnerID,
	}
	var err error
	if req.Priority != "" {
		if in.Priority, err = parsePriority(req.Priority); err != nil {
			return in, err
		}
	}
	if req.Status != "" {
		if in.Status, err = parseStatus(req.Status); err != nil {
			return in, err
		}
	}
	if req.Deadline != "" {
		if in.Deadline, err = parseDate("deadline", req.Deadline); err != nil {
			return in, err
		}
	}
	return in, nil
}

func toTaskPatch(req taskPatchRequest) (domain.TaskPatch, error) {
	patch := domain.TaskPatch{
		Title:       req.Title,
		Description: req.Description,
		Responsible: req.Responsible,
		OwnerID:     req.OwnerID,
	}
	if req.Priority != nil {
		p, err := parsePriority(*req.Priority)
		if err != nil {
			return patch, err
		}
		patch.Priority = &p
	}
	if req.Status != nil {
		st, err := parseStatus(*req.Status)
		if err != nil {
			return patch, err
		}
		patch.Status = &st
	}
	if req.Deadline != nil {
		d, err := parseDate("deadline", *req.Deadline)
		if err != nil {
			return patch, err
		}
		patch.Deadline = d
	}
	return patch, nil
}

func toTaskResponse(v ports.TaskView, today time.Time) taskResponse {
	t := v.Task
	resp := taskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Responsible: t.Responsible,
		Priority:    string(t.Priority),
		Status:      string(t.Status),
		Overdue:     t.IsOverdue(today),
		Owner: ownerResponse{
			ID:       v.Owner.ID,
			Username: v.Owner.Username,
			Role:     string(v.Owner.Role),
		},
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
	if t.Deadline != nil {
		resp.Deadline = t.Deadline.Format(domain.DateLayout)
	}
	return resp
}

func toTaskResponses(views []ports.TaskView, today time.Time) []taskResponse {
	out := make([]taskResponse, 0, len(views))
	for _, v := range views {
		out = append(out, toTaskResponse(v, today))
	}
	return out
}

func parsePriority(s string) (domain.Priority, error) {
	p, ok := domain.ParsePriority(s)
	if !ok {
		return "", echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("priority must be one of: LOW MEDIUM HIGH (got %q)", s))
	}
	return p, nil
}

func parseStatus(s string) (domain.TaskStatus, error) {
	st, ok := domain.ParseTaskStatus(s)
	if !ok {
		return "", echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("status must be one of: TODO IN_PROGRESS DONE (got %q)", s))
	}
	return st, nil
}

func parseDate(field, s string) (*time.Time, error) {
	d, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("%s must be a date in %s format", field, domain.DateLayout))
	}
	return &d, nil
}
