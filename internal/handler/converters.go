package handler

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/flybeeper/trajflow/internal/models"
)

// trajectoriesToGeoJSON траектории как LineString с краткой статистикой
func trajectoriesToGeoJSON(c *models.TrajectoryCollection) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for i := range c.Trajectories {
		t := &c.Trajectories[i]
		line := make(orb.LineString, len(t.Points))
		for j, p := range t.Points {
			line[j] = orb.Point{p.X, p.Y}
		}

		f := geojson.NewFeature(line)
		f.Properties["id"] = t.ID
		f.Properties["entity_id"] = t.EntityID
		f.Properties["points"] = len(t.Points)
		f.Properties["distance_m"] = t.Length()
		f.Properties["duration_s"] = t.Duration().Seconds()
		if len(t.Points) > 0 {
			f.Properties["start"] = t.Points[0].Timestamp
			f.Properties["end"] = t.Points[len(t.Points)-1].Timestamp
		}
		fc.Append(f)
	}
	return fc
}

// flowsToGeoJSON потоки в порядке убывания веса
func flowsToGeoJSON(flows []models.Flow) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for i, fl := range flows {
		f := geojson.NewFeature(fl.Geometry)
		f.Properties["rank"] = i
		f.Properties["weight"] = fl.Weight
		f.Properties["obj_weight"] = fl.ObjWeight
		f.Properties["from"] = fl.From
		f.Properties["to"] = fl.To
		fc.Append(f)
	}
	return fc
}

// stopClustersToGeoJSON центроиды кластеров остановок
func stopClustersToGeoJSON(clusters []models.StopCluster) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, c := range clusters {
		f := geojson.NewFeature(orb.Point{c.Centroid.Longitude, c.Centroid.Latitude})
		f.Properties["id"] = c.ID
		f.Properties["geohash"] = c.Geohash
		f.Properties["n"] = c.N
		fc.Append(f)
	}
	return fc
}

// pointJSON элемент потока точек
type pointJSON struct {
	TrajectoryID string  `json:"trajectory_id"`
	EntityID     string  `json:"entity_id"`
	Timestamp    int64   `json:"t"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	Distance     float64 `json:"distance"`
	Speed        float64 `json:"speed"`
}

func convertTrajectoryPoint(tp models.TrajectoryPoint) pointJSON {
	return pointJSON{
		TrajectoryID: tp.TrajectoryID,
		EntityID:     tp.EntityID,
		Timestamp:    tp.Timestamp.Unix(),
		X:            tp.X,
		Y:            tp.Y,
		Distance:     tp.Distance,
		Speed:        tp.Speed,
	}
}

// evaluationJSON результат перебора с лучшей ячейкой
func evaluationJSON(r *models.GridResult) map[string]interface{} {
	response := map[string]interface{}{
		"kind":       r.Kind,
		"run_id":     r.RunID,
		"created_at": r.CreatedAt,
		"grid":       r.Grid,
		"scores":     r.Scores,
		"valid":      r.ValidCount(),
	}
	if index, params, err := r.Best(); err == nil {
		response["best"] = map[string]interface{}{
			"index":  index,
			"params": params,
			"key":    params.Key(),
			"score":  r.Scores[index],
		}
	}
	return response
}

// toProtoStruct переводит JSON-представление значения в structpb.Struct
func toProtoStruct(v interface{}) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value: %w", err)
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("value is not a JSON object: %w", err)
	}
	return structpb.NewStruct(fields)
}

// marshalProto бинарное protobuf-представление значения
func marshalProto(v interface{}) ([]byte, error) {
	s, err := toProtoStruct(v)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(s)
}
