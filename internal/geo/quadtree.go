package geo

import (
	"math"
	"sort"
	"sync"
)

const (
	// Maximum number of objects in a node before splitting
	nodeCapacity = 32

	// Maximum depth of the tree
	maxDepth = 12

	// Minimum node size in coordinate units
	minNodeSize = 1e-6
)

// Object represents a spatial object in the QuadTree.
// X is longitude and Y is latitude for geographic data.
type Object interface {
	GetID() int
	GetX() float64
	GetY() float64
}

// Item is the simplest Object: an index with a position
type Item struct {
	ID int
	X  float64
	Y  float64
}

func (i Item) GetID() int    { return i.ID }
func (i Item) GetX() float64 { return i.X }
func (i Item) GetY() float64 { return i.Y }

// Bounds represents a rectangular area
type Bounds struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

// BoundsOf returns the smallest bounds containing all coordinates
func BoundsOf(coords [][2]float64) Bounds {
	if len(coords) == 0 {
		return Bounds{}
	}
	b := Bounds{MinX: coords[0][0], MinY: coords[0][1], MaxX: coords[0][0], MaxY: coords[0][1]}
	for _, c := range coords[1:] {
		b.MinX = math.Min(b.MinX, c[0])
		b.MinY = math.Min(b.MinY, c[1])
		b.MaxX = math.Max(b.MaxX, c[0])
		b.MaxY = math.Max(b.MaxY, c[1])
	}
	return b
}

// Contains checks if a point is within bounds
func (b Bounds) Contains(x, y float64) bool {
	return x >= b.MinX && x <= b.MaxX &&
		y >= b.MinY && y <= b.MaxY
}

// Intersects checks if two bounds intersect
func (b Bounds) Intersects(other Bounds) bool {
	return !(b.MaxX < other.MinX || b.MinX > other.MaxX ||
		b.MaxY < other.MinY || b.MinY > other.MaxY)
}

// Width returns the width of the bounds
func (b Bounds) Width() float64 {
	return b.MaxX - b.MinX
}

// Height returns the height of the bounds
func (b Bounds) Height() float64 {
	return b.MaxY - b.MinY
}

// Center returns the center point of the bounds
func (b Bounds) Center() (x, y float64) {
	return (b.MinX + b.MaxX) / 2, (b.MinY + b.MaxY) / 2
}

// QuadTree represents a spatial index for fast neighbourhood queries
type QuadTree struct {
	root    *node
	mu      sync.RWMutex
	objects map[int]Object // Fast lookup by ID
}

// node represents a node in the QuadTree
type node struct {
	bounds  Bounds
	objects []Object
	depth   int

	// Child nodes (nil if leaf)
	nw *node // Northwest
	ne *node // Northeast
	sw *node // Southwest
	se *node // Southeast
}

// NewQuadTree creates a new QuadTree covering bounds.
// Objects outside bounds are rejected by Insert.
func NewQuadTree(bounds Bounds) *QuadTree {
	return &QuadTree{
		root: &node{
			bounds:  bounds,
			objects: make([]Object, 0, nodeCapacity),
		},
		objects: make(map[int]Object),
	}
}

// NewPointIndex builds a QuadTree over coordinates, using the slice index as ID
func NewPointIndex(coords [][2]float64) *QuadTree {
	qt := NewQuadTree(BoundsOf(coords))
	for i, c := range coords {
		qt.Insert(Item{ID: i, X: c[0], Y: c[1]})
	}
	return qt
}

// Insert adds an object to the QuadTree. Returns false if it lies outside the tree bounds.
func (qt *QuadTree) Insert(obj Object) bool {
	qt.mu.Lock()
	defer qt.mu.Unlock()

	if !qt.root.bounds.Contains(obj.GetX(), obj.GetY()) {
		return false
	}

	qt.objects[obj.GetID()] = obj
	qt.root.insert(obj)
	return true
}

// Remove removes an object from the QuadTree
func (qt *QuadTree) Remove(id int) {
	qt.mu.Lock()
	defer qt.mu.Unlock()

	obj, exists := qt.objects[id]
	if !exists {
		return
	}

	delete(qt.objects, id)
	qt.root.remove(obj)
}

// Update moves an object to its new position.
// The stored copy is used to locate the old position, so objects must be values, not mutated pointers.
func (qt *QuadTree) Update(obj Object) bool {
	qt.mu.Lock()
	defer qt.mu.Unlock()

	if oldObj, exists := qt.objects[obj.GetID()]; exists {
		qt.root.remove(oldObj)
		delete(qt.objects, obj.GetID())
	}

	if !qt.root.bounds.Contains(obj.GetX(), obj.GetY()) {
		return false
	}

	qt.objects[obj.GetID()] = obj
	qt.root.insert(obj)
	return true
}

// Get returns the stored object by ID
func (qt *QuadTree) Get(id int) (Object, bool) {
	qt.mu.RLock()
	defer qt.mu.RUnlock()

	obj, ok := qt.objects[id]
	return obj, ok
}

// QueryRadius returns all objects within Euclidean radius of (x, y), ordered by ID
func (qt *QuadTree) QueryRadius(x, y, radius float64) []Object {
	qt.mu.RLock()
	defer qt.mu.RUnlock()

	bounds := Bounds{
		MinX: x - radius,
		MaxX: x + radius,
		MinY: y - radius,
		MaxY: y + radius,
	}

	candidates := qt.root.query(bounds)

	r2 := radius * radius
	result := make([]Object, 0, len(candidates))
	for _, obj := range candidates {
		dx := obj.GetX() - x
		dy := obj.GetY() - y
		if dx*dx+dy*dy <= r2 {
			result = append(result, obj)
		}
	}

	sortByID(result)
	return result
}

// QueryRadiusMeters returns all objects within radiusMeters of (lon, lat) by haversine distance, ordered by ID
func (qt *QuadTree) QueryRadiusMeters(lon, lat, radiusMeters float64) []Object {
	qt.mu.RLock()
	defer qt.mu.RUnlock()

	// Convert radius to approximate degrees, slightly widened for the prefilter
	radiusLat := radiusMeters / metersPerDegree * 1.01
	cosLat := math.Max(math.Cos(lat*math.Pi/180), 0.01)
	radiusLon := radiusLat / cosLat

	bounds := Bounds{
		MinX: lon - radiusLon,
		MaxX: lon + radiusLon,
		MinY: lat - radiusLat,
		MaxY: lat + radiusLat,
	}

	candidates := qt.root.query(bounds)

	result := make([]Object, 0, len(candidates))
	for _, obj := range candidates {
		if DistanceMeters(lat, lon, obj.GetY(), obj.GetX()) <= radiusMeters {
			result = append(result, obj)
		}
	}

	sortByID(result)
	return result
}

// QueryBounds returns all objects within bounds, ordered by ID
func (qt *QuadTree) QueryBounds(bounds Bounds) []Object {
	qt.mu.RLock()
	defer qt.mu.RUnlock()

	result := qt.root.query(bounds)
	sortByID(result)
	return result
}

// Size returns the number of objects in the tree
func (qt *QuadTree) Size() int {
	qt.mu.RLock()
	defer qt.mu.RUnlock()

	return len(qt.objects)
}

func sortByID(objs []Object) {
	sort.Slice(objs, func(i, j int) bool {
		return objs[i].GetID() < objs[j].GetID()
	})
}

// insert adds an object to the node
func (n *node) insert(obj Object) {
	if !n.bounds.Contains(obj.GetX(), obj.GetY()) {
		return
	}

	if n.nw != nil {
		n.insertIntoChild(obj)
		return
	}

	n.objects = append(n.objects, obj)

	if len(n.objects) > nodeCapacity && n.shouldSplit() {
		n.split()
	}
}

// insertIntoChild inserts object into the appropriate child node
func (n *node) insertIntoChild(obj Object) {
	n.childFor(obj.GetX(), obj.GetY()).insert(obj)
}

func (n *node) childFor(x, y float64) *node {
	centerX, centerY := n.bounds.Center()

	if y >= centerY {
		if x >= centerX {
			return n.ne
		}
		return n.nw
	}
	if x >= centerX {
		return n.se
	}
	return n.sw
}

// shouldSplit checks if node should be split
func (n *node) shouldSplit() bool {
	return n.depth < maxDepth &&
		n.bounds.Width() > minNodeSize &&
		n.bounds.Height() > minNodeSize
}

// split divides the node into four children
func (n *node) split() {
	centerX, centerY := n.bounds.Center()
	b := n.bounds

	n.nw = n.child(Bounds{MinX: b.MinX, MinY: centerY, MaxX: centerX, MaxY: b.MaxY})
	n.ne = n.child(Bounds{MinX: centerX, MinY: centerY, MaxX: b.MaxX, MaxY: b.MaxY})
	n.sw = n.child(Bounds{MinX: b.MinX, MinY: b.MinY, MaxX: centerX, MaxY: centerY})
	n.se = n.child(Bounds{MinX: centerX, MinY: b.MinY, MaxX: b.MaxX, MaxY: centerY})

	oldObjects := n.objects
	n.objects = nil

	for _, obj := range oldObjects {
		n.insertIntoChild(obj)
	}
}

func (n *node) child(bounds Bounds) *node {
	return &node{
		bounds:  bounds,
		objects: make([]Object, 0, nodeCapacity),
		depth:   n.depth + 1,
	}
}

// remove removes an object from the node
func (n *node) remove(obj Object) bool {
	if n.nw != nil {
		return n.childFor(obj.GetX(), obj.GetY()).remove(obj)
	}

	for i, o := range n.objects {
		if o.GetID() == obj.GetID() {
			n.objects = append(n.objects[:i], n.objects[i+1:]...)
			return true
		}
	}

	return false
}

// query returns all objects within the given bounds
func (n *node) query(bounds Bounds) []Object {
	if !n.bounds.Intersects(bounds) {
		return nil
	}

	var result []Object

	if n.nw != nil {
		result = append(result, n.nw.query(bounds)...)
		result = append(result, n.ne.query(bounds)...)
		result = append(result, n.sw.query(bounds)...)
		result = append(result, n.se.query(bounds)...)
		return result
	}

	for _, obj := range n.objects {
		if bounds.Contains(obj.GetX(), obj.GetY()) {
			result = append(result, obj)
		}
	}

	return result
}
