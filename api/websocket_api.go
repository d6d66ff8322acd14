package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// WorkflowStepChangesWebsocketHandler streams the workflow's step changes as
// JSON messages. lastStreamId resumes after a previously seen change;
// without it only new changes are sent.
func (ctrl *Controller) WorkflowStepChangesWebsocketHandler(c *gin.Context) {
	workflow, err := ctrl.ownedWorkflow(c)
	if err != nil {
		ctrl.handleError(c, err)
		return
	}

	streamMessageStartId := c.Query("lastStreamId")
	if streamMessageStartId == "" {
		streamMessageStartId = "$"
	}

	conn, err := ctrl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	changeCh, errCh := ctrl.service.StreamWorkflowStepChanges(ctx, workflow.Id, streamMessageStartId)

	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				log.Debug().Err(err).Str("workflowId", workflow.Id).Msg("Client disconnected")
				cancel()
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errCh:
			if ok && err != nil {
				log.Error().Err(err).Str("workflowId", workflow.Id).Msg("Error streaming workflow step changes")
				return
			}
		case change, ok := <-changeCh:
			if !ok {
				return
			}
			if err := conn.WriteJSON(change); err != nil {
				log.Error().Err(err).Str("workflowId", workflow.Id).Msg("Error writing step change to websocket")
				return
			}
		}
	}
}
