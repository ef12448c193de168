package api

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"pdfrag/types"
)

type Querier interface {
	Query(ctx context.Context, params types.QueryParams) ([]types.SearchResult, error)
}

type Answerer interface {
	Answer(ctx context.Context, question string, results []types.SearchResult) (types.Answer, error)
}

type QueryHandler struct {
	query Querier
	agent Answerer
}

func NewQueryHandler(query Querier, agent Answerer) *QueryHandler {
	return &QueryHandler{
		query: query,
		agent: agent,
	}
}

type Hit struct {
	types.Chunk
	Distance float64 `json:"distance"`
}

type QueryResponse struct {
	Results []Hit `json:"results"`
}

func (h *QueryHandler) HandleQuery(c *fiber.Ctx) error {
	var params types.QueryParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}
	if errors := types.Validate(&params); len(errors) > 0 {
		return types.NewValidationError(errors)
	}

	results, err := h.query.Query(c.UserContext(), params)
	if err != nil {
		return err
	}

	hits := make([]Hit, len(results))
	for i, r := range results {
		hits[i] = Hit{Chunk: r.Chunk, Distance: r.Distance}
	}
	return c.JSON(QueryResponse{Results: hits})
}

func (h *QueryHandler) HandleAsk(c *fiber.Ctx) error {
	var params types.AskParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}
	if errors := types.Validate(&params); len(errors) > 0 {
		return types.NewValidationError(errors)
	}

	results, err := h.query.Query(c.UserContext(), types.QueryParams{
		Text:       params.Question,
		TopK:       params.TopK,
		DocumentID: params.DocumentID,
	})
	if err != nil {
		return err
	}

	answer, err := h.agent.Answer(c.UserContext(), params.Question, results)
	if err != nil {
		return err
	}
	return c.JSON(answer)
}
