package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"strconv"
	"time"
)

// GeneratorConfig параметры синтетических треков
type GeneratorConfig struct {
	Output      string
	Entities    int
	Trips       int
	Sites       int
	Interval    time.Duration
	Dwell       time.Duration
	Speed       float64 // км/ч
	RandomSeed  int64
	CenterLat   float64
	CenterLon   float64
	SpreadMeter float64
}

// EntityState состояние симулированного объекта
type EntityState struct {
	ID        string
	Latitude  float64
	Longitude float64
	Site      int
	Clock     time.Time
}

// site точка остановки, между которыми ездят объекты
type site struct {
	lat, lon float64
}

func main() {
	var (
		output   = flag.String("out", "tracks.csv", "Output CSV file")
		entities = flag.Int("entities", 5, "Number of simulated entities")
		trips    = flag.Int("trips", 6, "Trips per entity")
		sites    = flag.Int("sites", 4, "Number of stop sites")
		interval = flag.Duration("interval", 30*time.Second, "Sampling interval")
		dwell    = flag.Duration("dwell", 15*time.Minute, "Dwell time at a site")
		speed    = flag.Float64("speed", 30.0, "Movement speed km/h")
		seed     = flag.Int64("seed", time.Now().UnixNano(), "Random seed")
		lat      = flag.Float64("lat", 44.97, "Center latitude")
		lon      = flag.Float64("lon", 14.75, "Center longitude")
		spread   = flag.Float64("spread", 3000, "Site spread radius in meters")
	)
	flag.Parse()

	cfg := &GeneratorConfig{
		Output:      *output,
		Entities:    *entities,
		Trips:       *trips,
		Sites:       *sites,
		Interval:    *interval,
		Dwell:       *dwell,
		Speed:       *speed,
		RandomSeed:  *seed,
		CenterLat:   *lat,
		CenterLon:   *lon,
		SpreadMeter: *spread,
	}
	if cfg.Sites < 2 || cfg.Entities < 1 || cfg.Interval <= 0 || cfg.Speed <= 0 {
		log.Fatalf("Invalid generator parameters: %+v", cfg)
	}

	rows, err := generate(cfg)
	if err != nil {
		log.Fatalf("Failed to generate tracks: %v", err)
	}

	fmt.Printf("🚀 Generated %d records for %d entities\n", rows, cfg.Entities)
	fmt.Printf("📍 Sites: %d around %.4f, %.4f\n", cfg.Sites, cfg.CenterLat, cfg.CenterLon)
	fmt.Printf("💾 Output: %s\n", cfg.Output)
}

func generate(cfg *GeneratorConfig) (int, error) {
	f, err := os.Create(cfg.Output)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"entity_id", "timestamp", "x", "y"}); err != nil {
		return 0, err
	}

	rng := rand.New(rand.NewSource(cfg.RandomSeed))
	sites := make([]site, cfg.Sites)
	for i := range sites {
		angle := rng.Float64() * 2 * math.Pi
		dist := cfg.SpreadMeter * (0.3 + 0.7*rng.Float64())
		sites[i] = offset(cfg.CenterLat, cfg.CenterLon, dist*math.Cos(angle), dist*math.Sin(angle))
	}

	start := time.Date(2024, 6, 1, 6, 0, 0, 0, time.UTC)
	rows := 0
	for e := 1; e <= cfg.Entities; e++ {
		home := rng.Intn(len(sites))
		state := &EntityState{
			ID:        strconv.Itoa(e),
			Latitude:  sites[home].lat,
			Longitude: sites[home].lon,
			Site:      home,
			Clock:     start.Add(time.Duration(rng.Intn(3600)) * time.Second),
		}

		for trip := 0; trip < cfg.Trips; trip++ {
			n, err := dwellAt(w, state, cfg, rng)
			if err != nil {
				return rows, err
			}
			rows += n

			next := (state.Site + 1 + rng.Intn(len(sites)-1)) % len(sites)
			n, err = travel(w, state, sites[next], cfg, rng)
			if err != nil {
				return rows, err
			}
			rows += n
			state.Site = next
		}
	}

	w.Flush()
	return rows, w.Error()
}

// dwellAt записывает точки стоянки с шумом GPS в несколько метров
func dwellAt(w *csv.Writer, s *EntityState, cfg *GeneratorConfig, rng *rand.Rand) (int, error) {
	rows := 0
	for elapsed := time.Duration(0); elapsed < cfg.Dwell; elapsed += cfg.Interval {
		p := offset(s.Latitude, s.Longitude, rng.NormFloat64()*3, rng.NormFloat64()*3)
		if err := write(w, s.ID, s.Clock, p); err != nil {
			return rows, err
		}
		s.Clock = s.Clock.Add(cfg.Interval)
		rows++
	}
	return rows, nil
}

// travel движется к цели с постоянной скоростью
func travel(w *csv.Writer, s *EntityState, target site, cfg *GeneratorConfig, rng *rand.Rand) (int, error) {
	step := cfg.Speed / 3.6 * cfg.Interval.Seconds()
	dy := (target.lat - s.Latitude) * 111320
	dx := (target.lon - s.Longitude) * 111320 * math.Cos(s.Latitude*math.Pi/180)
	steps := int(math.Ceil(math.Hypot(dx, dy) / step))

	rows := 0
	from := site{s.Latitude, s.Longitude}
	for i := 1; i <= steps; i++ {
		frac := float64(i) / float64(steps)
		p := site{
			lat: from.lat + (target.lat-from.lat)*frac,
			lon: from.lon + (target.lon-from.lon)*frac,
		}
		p = offset(p.lat, p.lon, rng.NormFloat64()*5, rng.NormFloat64()*5)
		if err := write(w, s.ID, s.Clock, p); err != nil {
			return rows, err
		}
		s.Clock = s.Clock.Add(cfg.Interval)
		rows++
	}
	s.Latitude, s.Longitude = target.lat, target.lon
	return rows, nil
}

func write(w *csv.Writer, id string, ts time.Time, p site) error {
	return w.Write([]string{
		id,
		ts.Format(time.RFC3339),
		strconv.FormatFloat(p.lon, 'f', 6, 64),
		strconv.FormatFloat(p.lat, 'f', 6, 64),
	})
}

// offset сдвигает точку на dx, dy метров
func offset(lat, lon, dx, dy float64) site {
	return site{
		lat: lat + dy/111320,
		lon: lon + dx/(111320*math.Cos(lat*math.Pi/180)),
	}
}
