package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/flybeeper/trajflow/internal/models"
	"github.com/flybeeper/trajflow/pkg/utils"
)

const (
	defaultPointsLimit = 1000
	maxPointsLimit     = 10000
)

// RESTHandler обработчик REST API endpoints
type RESTHandler struct {
	results ResultSource
	logger  *utils.Logger
}

// NewRESTHandler создает новый REST handler
func NewRESTHandler(results ResultSource, logger *utils.Logger) *RESTHandler {
	return &RESTHandler{
		results: results,
		logger:  logger,
	}
}

// GetTrajectories возвращает предобработанные траектории в GeoJSON
// GET /api/v1/trajectories
func (h *RESTHandler) GetTrajectories(c *gin.Context) {
	collection, ok := h.results.Collection()
	if !ok {
		notReady(c, "trajectories")
		return
	}
	c.JSON(http.StatusOK, trajectoriesToGeoJSON(collection))
}

// GetPoints возвращает страницу потока точек
// GET /api/v1/points?offset=0&limit=1000
func (h *RESTHandler) GetPoints(c *gin.Context) {
	collection, ok := h.results.Collection()
	if !ok {
		notReady(c, "trajectories")
		return
	}

	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "invalid_offset",
			"message": "Offset must be a non-negative integer",
		})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPointsLimit)))
	if err != nil || limit < 1 || limit > maxPointsLimit {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "invalid_limit",
			"message": "Limit must be between 1 and 10000",
		})
		return
	}

	stream := collection.PointStream()
	points := make([]pointJSON, 0, limit)
	for i := 0; len(points) < limit; i++ {
		tp, ok := stream.Next()
		if !ok {
			break
		}
		if i >= offset {
			points = append(points, convertTrajectoryPoint(tp))
		}
	}

	h.respond(c, gin.H{
		"offset": offset,
		"total":  collection.PointCount(),
		"points": points,
	})
}

// GetFlows возвращает потоки лучшего решения агрегатора в GeoJSON
// GET /api/v1/flows
func (h *RESTHandler) GetFlows(c *gin.Context) {
	result, ok := h.results.Solution(models.FlowAggregation)
	if !ok {
		notReady(c, "flows")
		return
	}
	c.JSON(http.StatusOK, flowsToGeoJSON(result.Flows))
}

// GetStopClusters возвращает кластеры остановок в GeoJSON
// GET /api/v1/stop-clusters
func (h *RESTHandler) GetStopClusters(c *gin.Context) {
	result, ok := h.results.Solution(models.FlowAggregation)
	if !ok {
		notReady(c, "stop clusters")
		return
	}
	c.JSON(http.StatusOK, stopClustersToGeoJSON(result.Clusters))
}

// GetLabeled возвращает размеченные траектории решения
// GET /api/v1/labeled/:solver
func (h *RESTHandler) GetLabeled(c *gin.Context) {
	kind, ok := solverParam(c)
	if !ok {
		return
	}
	result, ok := h.results.Solution(kind)
	if !ok || !result.Clustered() {
		notReady(c, "labeled trajectories")
		return
	}

	h.respond(c, gin.H{
		"params":       result.Params,
		"key":          result.Params.Key(),
		"trajectories": result.Labeled,
	})
}

// GetEvaluation возвращает оценки сетки параметров
// GET /api/v1/evaluations/:solver
func (h *RESTHandler) GetEvaluation(c *gin.Context) {
	kind, ok := solverParam(c)
	if !ok {
		return
	}
	result, ok := h.results.Evaluation(kind)
	if !ok {
		notReady(c, "evaluation")
		return
	}
	h.respond(c, evaluationJSON(result))
}

// GetValidation возвращает счетчики валидации входных записей
// GET /api/v1/validation/metrics
func (h *RESTHandler) GetValidation(c *gin.Context) {
	m, ok := h.results.Validation()
	if !ok {
		notReady(c, "validation metrics")
		return
	}

	rate := 0.0
	if m.TotalRecords > 0 {
		rate = float64(m.AcceptedRecords) / float64(m.TotalRecords) * 100
	}
	c.JSON(http.StatusOK, gin.H{
		"total_records":    m.TotalRecords,
		"accepted_records": m.AcceptedRecords,
		"rejected":         m.Rejected,
		"acceptance_rate":  rate,
	})
}

// respond отдает protobuf при Accept: application/x-protobuf, иначе JSON
func (h *RESTHandler) respond(c *gin.Context, payload interface{}) {
	if !strings.Contains(c.GetHeader("Accept"), "application/x-protobuf") {
		c.JSON(http.StatusOK, payload)
		return
	}

	data, err := marshalProto(payload)
	if err != nil {
		h.logger.WithField("error", err).Error("Failed to marshal protobuf")
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "marshal_error",
			"message": "Failed to serialize response",
		})
		return
	}
	c.Data(http.StatusOK, "application/x-protobuf", data)
}

func solverParam(c *gin.Context) (models.SolverKind, bool) {
	kind := models.SolverKind(c.Param("solver"))
	if !kind.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "invalid_solver",
			"message": "Solver must be tca or dbscan",
		})
		return "", false
	}
	return kind, true
}

func notReady(c *gin.Context, what string) {
	c.JSON(http.StatusNotFound, gin.H{
		"code":    "not_ready",
		"message": what + " not computed yet",
	})
}
