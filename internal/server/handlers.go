package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/emrgen/notebook/internal/linkparse"
	"github.com/emrgen/notebook/internal/model"
	"github.com/emrgen/notebook/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type CreateRecordRequest struct {
	Name   string           `json:"name" binding:"required"`
	Type   model.RecordType `json:"type"`
	Fields []struct {
		Name    string `json:"name"`
		Content string `json:"content"`
	} `json:"fields"`
}

type FieldView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Position int    `json:"position"`
}

type RecordView struct {
	ID       string             `json:"id"`
	Name     string             `json:"name"`
	Type     model.RecordType   `json:"type"`
	OwnerID  string             `json:"ownerId"`
	Revision int64              `json:"revision"`
	Status   model.RecordStatus `json:"status"`
	Fields   []FieldView        `json:"fields"`
}

type AutosaveRequest struct {
	// nil when missing, empty content is a valid autosave
	Content *string `json:"content"`
}

type LinkView struct {
	Kind     model.LinkKind  `json:"kind"`
	TargetID string          `json:"targetId"`
	State    model.LinkState `json:"state"`
	Deleted  bool            `json:"deleted"`
}

type RevisionView struct {
	Number       int64                `json:"number"`
	Action       model.RevisionAction `json:"action"`
	RestoredFrom *int64               `json:"restoredFrom,omitempty"`
	CreatedBy    string               `json:"createdBy"`
	CreatedAt    time.Time            `json:"createdAt"`
}

func (s *Server) createRecord(c *gin.Context) {
	var req CreateRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	in := service.CreateRecordInput{
		OwnerID: currentUser(c).ID,
		Name:    req.Name,
		Type:    req.Type,
	}
	for _, f := range req.Fields {
		in.Fields = append(in.Fields, service.FieldInput{Name: f.Name, Content: f.Content})
	}

	record, err := s.records.CreateRecord(c.Request.Context(), in)
	if err != nil {
		abortWithError(c, err)
		return
	}

	view := RecordView{
		ID:       record.ID,
		Name:     record.Name,
		Type:     record.Type,
		OwnerID:  record.OwnerID,
		Revision: record.Revision,
		Status:   record.Status,
	}
	for _, field := range record.Fields {
		view.Fields = append(view.Fields, FieldView{ID: field.ID, Name: field.Name, Position: field.Position})
	}

	c.JSON(http.StatusCreated, view)
}

func (s *Server) deleteRecord(c *gin.Context) {
	if err := s.records.DeleteRecord(c.Request.Context(), c.Param("id"), currentUser(c).ID); err != nil {
		abortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) signRecord(c *gin.Context) {
	if err := s.records.SignRecord(c.Request.Context(), c.Param("id"), currentUser(c)); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) requestEdit(c *gin.Context) {
	status, err := s.edit.RequestEdit(c.Request.Context(), c.Param("id"), currentUser(c))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": status})
}

func (s *Server) autosave(c *gin.Context) {
	var req AutosaveRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Content == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content is required"})
		return
	}

	ok, err := s.edit.Autosave(c.Request.Context(), c.Param("id"), *req.Content, currentUser(c))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": ok})
}

func (s *Server) save(c *gin.Context) {
	ok, err := s.edit.Save(c.Request.Context(), c.Param("id"), currentUser(c))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": ok})
}

func (s *Server) cancel(c *gin.Context) {
	ok, err := s.edit.CancelAutosave(c.Request.Context(), c.Param("id"), currentUser(c))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": ok})
}

func (s *Server) unlock(c *gin.Context) {
	if err := s.edit.UnlockRecord(c.Request.Context(), c.Param("id"), currentUser(c)); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) restore(c *gin.Context) {
	number, err := strconv.ParseInt(c.Param("number"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "revision number must be an integer"})
		return
	}

	result, err := s.edit.RestoreRevision(c.Request.Context(), number, c.Param("id"), currentUser(c))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) listRevisions(c *gin.Context) {
	revisions, err := s.edit.ListRevisions(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	views := make([]RevisionView, 0, len(revisions))
	for _, rev := range revisions {
		views = append(views, RevisionView{
			Number:       rev.Number,
			Action:       rev.Action,
			RestoredFrom: rev.RestoredFrom,
			CreatedBy:    rev.CreatedBy,
			CreatedAt:    rev.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"revisions": views})
}

func (s *Server) fieldContent(c *gin.Context) {
	content, err := s.edit.FieldContent(c.Request.Context(), c.Param("id"), currentUser(c))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"content": content})
}

func (s *Server) links(c *gin.Context) {
	ctx := c.Request.Context()
	fieldID := c.Param("id")

	count, err := s.edit.LiveLinkCount(ctx, fieldID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	targets, err := s.edit.LinkTargets(ctx, fieldID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	links, err := s.edit.Links(ctx, fieldID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	names := make([]string, 0, targets.Cardinality())
	for _, ref := range linkparse.Sorted(targets) {
		names = append(names, ref.String())
	}
	views := make([]LinkView, 0, len(links))
	for _, link := range links {
		views = append(views, LinkView{Kind: link.Kind, TargetID: link.TargetID, State: link.State, Deleted: link.Deleted()})
	}

	c.JSON(http.StatusOK, gin.H{"count": count, "targets": names, "links": views})
}

func (s *Server) logout(c *gin.Context) {
	sessionID := c.Param("id")
	if sessionID != currentUser(c).SessionID {
		c.JSON(http.StatusForbidden, gin.H{"error": "cannot log out another session"})
		return
	}

	s.sessions.Remove(sessionID)
	if err := s.edit.ReleaseSession(c.Request.Context(), sessionID); err != nil {
		abortWithError(c, err)
		return
	}

	logrus.Infof("session %s logged out", sessionID)
	c.JSON(http.StatusOK, gin.H{"success": true})
}
