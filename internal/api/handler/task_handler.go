package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/esig/task-manager/internal/core/domain"
	"github.com/esig/task-manager/internal/core/ports"
)

// TaskHandler serves the /tasks routes. Every handler passes the caller's
// principal to the service; scoping happens there.
type TaskHandler struct {
	service ports.TaskService
	now     func() time.Time
}

func NewTaskHandler(service ports.TaskService) *TaskHandler {
	return &TaskHandler{service: service, now: time.Now}
}

// List godoc
//
// @Summary      List visible tasks
// @Description  Admins see every task, users only their own.
// @Tags         tasks
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   taskResponse
// @Failure      401  {object}  errorResponse
// @Router       /tasks [get]
func (h *TaskHandler) List(c echo.Context) error {
	return h.list(c, func(caller *domain.Principal) ([]ports.TaskView, error) {
		return h.service.List(c.Request().Context(), caller)
	})
}

// Get godoc
//
// @Summary      Get a task
// @Tags         tasks
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Task id"
// @Success      200  {object}  taskResponse
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /tasks/{id} [get]
func (h *TaskHandler) Get(c echo.Context) error {
	return h.one(c, http.StatusOK, func(caller *domain.Principal) (*ports.TaskView, error) {
		return h.service.Get(c.Request().Context(), caller, c.Param("id"))
	})
}

// Create godoc
//
// @Summary      Create a task
// @Description  ownerId is honoured for admins only; users always own what they create.
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      taskRequest  true  "Task"
// @Success      201   {object}  taskResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Router       /tasks [post]
func (h *TaskHandler) Create(c echo.Context) error {
	in, err := bindTaskInput(c)
	if err != nil {
		return err
	}
	return h.one(c, http.StatusCreated, func(caller *domain.Principal) (*ports.TaskView, error) {
		return h.service.Create(c.Request().Context(), caller, in)
	})
}

// Update godoc
//
// @Summary      Replace a task
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string       true  "Task id"
// @Param        body  body      taskRequest  true  "Task"
// @Success      200   {object}  taskResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Router       /tasks/{id} [put]
func (h *TaskHandler) Update(c echo.Context) error {
	in, err := bindTaskInput(c)
	if err != nil {
		return err
	}
	return h.one(c, http.StatusOK, func(caller *domain.Principal) (*ports.TaskView, error) {
		return h.service.Update(c.Request().Context(), caller, c.Param("id"), in)
	})
}

// Patch godoc
//
// @Summary      Partially update a task
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string            true  "Task id"
// @Param        body  body      taskPatchRequest  true  "Fields to change"
// @Success      200   {object}  taskResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Router       /tasks/{id} [patch]
func (h *TaskHandler) Patch(c echo.Context) error {
	var req taskPatchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	patch, err := toTaskPatch(req)
	if err != nil {
		return err
	}
	return h.one(c, http.StatusOK, func(caller *domain.Principal) (*ports.TaskView, error) {
		return h.service.Patch(c.Request().Context(), caller, c.Param("id"), patch)
	})
}

// Delete godoc
//
// @Summary      Delete a task
// @Tags         tasks
// @Security     BearerAuth
// @Param        id   path  string  true  "Task id"
// @Success      204
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /tasks/{id} [delete]
func (h *TaskHandler) Delete(c echo.Context) error {
	caller, err := principalFrom(c)
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.Request().Context(), caller, c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Complete godoc
//
// @Summary      Mark a task as done
// @Tags         tasks
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Task id"
// @Success      200  {object}  taskResponse
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /tasks/{id}/complete [patch]
func (h *TaskHandler) Complete(c echo.Context) error {
	return h.one(c, http.StatusOK, func(caller *domain.Principal) (*ports.TaskView, error) {
		return h.service.Complete(c.Request().Context(), caller, c.Param("id"))
	})
}

// ByStatus godoc
//
// @Summary      List visible tasks with a status
// @Tags         tasks
// @Produce      json
// @Security     BearerAuth
// @Param        status  path      string  true  "TODO, IN_PROGRESS or DONE"
// @Success      200     {array}   taskResponse
// @Failure      400     {object}  errorResponse
// @Failure      401     {object}  errorResponse
// @Router       /tasks/status/{status} [get]
func (h *TaskHandler) ByStatus(c echo.Context) error {
	status, err := parseStatus(c.Param("status"))
	if err != nil {
		return err
	}
	return h.list(c, func(caller *domain.Principal) ([]ports.TaskView, error) {
		return h.service.ListByStatus(c.Request().Context(), caller, status)
	})
}

// ByPriority godoc
//
// @Summary      List visible tasks with a priority
// @Tags         tasks
// @Produce      json
// @Security     BearerAuth
// @Param        priority  path      string  true  "LOW, MEDIUM or HIGH"
// @Success      200       {array}   taskResponse
// @Failure      400       {object}  errorResponse
// @Failure      401       {object}  errorResponse
// @Router       /tasks/priority/{priority} [get]
func (h *TaskHandler) ByPriority(c echo.Context) error {
	priority, err := parsePriority(c.Param("priority"))
	if err != nil {
		return err
	}
	return h.list(c, func(caller *domain.Principal) ([]ports.TaskView, error) {
		return h.service.ListByPriority(c.Request().Context(), caller, priority)
	})
}

// ByOwner godoc
//
// @Summary      List the tasks of one account
// @Description  Admins may list any account; users only themselves.
// @Tags         tasks
// @Produce      json
// @Security     BearerAuth
// @Param        userId  path      string  true  "Account id"
// @Success      200     {array}   taskResponse
// @Failure      401     {object}  errorResponse
// @Failure      403     {object}  errorResponse
// @Failure      404     {object}  errorResponse
// @Router       /tasks/user/{userId} [get]
func (h *TaskHandler) ByOwner(c echo.Context) error {
	return h.list(c, func(caller *domain.Principal) ([]ports.TaskView, error) {
		return h.service.ListByOwner(c.Request().Context(), caller, c.Param("userId"))
	})
}

// Filter godoc
//
// @Summary      Filter visible tasks
// @Description  All parameters are optional. Results are ordered by priority, highest first.
// @Tags         tasks
// @Produce      json
// @Security     BearerAuth
// @Param        status       query     string  false  "TODO, IN_PROGRESS or DONE"
// @Param        priority     query     string  false  "LOW, MEDIUM or HIGH"
// @Param        responsible  query     string  false  "Case-insensitive substring"
// @Param        startDate    query     string  false  "Earliest deadline (YYYY-MM-DD)"
// @Param        endDate      query     string  false  "Latest deadline (YYYY-MM-DD)"
// @Success      200          {array}   taskResponse
// @Failure      400          {object}  errorResponse
// @Failure      401          {object}  errorResponse
// @Router       /tasks/filter [get]
func (h *TaskHandler) Filter(c echo.Context) error {
	q, err := bindTaskQuery(c)
	if err != nil {
		return err
	}
	return h.list(c, func(caller *domain.Principal) ([]ports.TaskView, error) {
		return h.service.Filter(c.Request().Context(), caller, q)
	})
}

// Overdue godoc
//
// @Summary      List visible overdue tasks
// @Tags         tasks
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   taskResponse
// @Failure      401  {object}  errorResponse
// @Router       /tasks/overdue [get]
func (h *TaskHandler) Overdue(c echo.Context) error {
	return h.list(c, func(caller *domain.Principal) ([]ports.TaskView, error) {
		return h.service.Overdue(c.Request().Context(), caller)
	})
}

// Upcoming godoc
//
// @Summary      List visible tasks due within seven days
// @Tags         tasks
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   taskResponse
// @Failure      401  {object}  errorResponse
// @Router       /tasks/upcoming [get]
func (h *TaskHandler) Upcoming(c echo.Context) error {
	return h.list(c, func(caller *domain.Principal) ([]ports.TaskView, error) {
		return h.service.Upcoming(c.Request().Context(), caller)
	})
}

// --- helpers ---

func (h *TaskHandler) one(c echo.Context, status int, call func(*domain.Principal) (*ports.TaskView, error)) error {
	caller, err := principalFrom(c)
	if err != nil {
		return err
	}
	view, err := call(caller)
	if err != nil {
		return err
	}
	return c.JSON(status, toTaskResponse(*view, h.now()))
}

func (h *TaskHandler) list(c echo.Context, call func(*domain.Principal) ([]ports.TaskView, error)) error {
	caller, err := principalFrom(c)
	if err != nil {
		return err
	}
	views, err := call(caller)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toTaskResponses(views, h.now()))
}

func bindTaskInput(c echo.Context) (ports.TaskInput, error) {
	var req taskRequest
	if err := c.Bind(&req); err != nil {
		return ports.TaskInput{}, echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return ports.TaskInput{}, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return toTaskInput(req)
}

func bindTaskQuery(c echo.Context) (ports.TaskQuery, error) {
	var (
		q   ports.TaskQuery
		err error
	)
	if s := c.QueryParam("status"); s != "" {
		if q.Status, err = parseStatus(s); err != nil {
			return q, err
		}
	}
	if s := c.QueryParam("priority"); s != "" {
		if q.Priority, err = parsePriority(s); err != nil {
			return q, err
		}
	}
	q.Responsible = c.QueryParam("responsible")
	if s := c.QueryParam("startDate"); s != "" {
		if q.StartDate, err = parseDate("startDate", s); err != nil {
			return q, err
		}
	}
	if s := c.QueryParam("endDate"); s != "" {
		if q.EndDate, err = parseDate("endDate", s); err != nil {
			return q, err
		}
	}
	return q, nil
}
