package sim

import (
	"fmt"
	"maps"
)

// Location is a latitude/longitude pair.
type Location struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// Warehouse is the inventory ledger of one site.
//
// Capacity is a ceiling applied per product line, not an aggregate cap:
// for every product, 0 <= quantity <= Capacity.
type Warehouse struct {
	ID        string
	Location  Location
	Capacity  int
	Operating bool

	inventory map[string]int
}

// NewWarehouse creates an operating warehouse with an empty ledger.
func NewWarehouse(id string, loc Location, capacity int) *Warehouse {
	return &Warehouse{
		ID:        id,
		Location:  loc,
		Capacity:  capacity,
		Operating: true,
		inventory: make(map[string]int),
	}
}

// InventoryLevel returns the stored quantity of productID; 0 for unknown products.
func (w *Warehouse) InventoryLevel(productID string) int {
	return w.inventory[productID]
}

// AddInventory increases the stored quantity of productID. The result is
// clamped to Capacity; the excess is discarded. Non-positive quantities are
// ignored.
func (w *Warehouse) AddInventory(productID string, quantity int) {
	if quantity <= 0 {
		return
	}
	if w.inventory == nil {
		w.inventory = make(map[string]int)
	}
	w.inventory[productID] = min(w.inventory[productID]+quantity, w.Capacity)
}

// RemoveInventory decrements productID by quantity only if enough stock is
// available. It reports whether the removal happened; on failure the ledger
// is unchanged.
func (w *Warehouse) RemoveInventory(productID string, quantity int) bool {
	if quantity <= 0 {
		return false
	}
	current := w.inventory[productID]
	if current < quantity {
		return false
	}
	w.inventory[productID] = current - quantity
	return true
}

// Inventory returns a copy of the ledger.
func (w *Warehouse) Inventory() map[string]int {
	return maps.Clone(w.inventory)
}

func (w *Warehouse) clone() *Warehouse {
	cp := *w
	cp.inventory = maps.Clone(w.inventory)
	if cp.inventory == nil {
		cp.inventory = make(map[string]int)
	}
	return &cp
}

// This method returns a human-readable string representation of a Warehouse.
func (w Warehouse) String() string {
	return fmt.Sprintf("Warehouse: (ID: %s, Capacity: %d, Operating: %v, Products: %d)", w.ID, w.Capacity, w.Operating, len(w.inventory))
}
