// Tillmirror - Offline-First POS Cache and Pending Write Queue
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tillmirror

package models

// DetailScope says how detail records of a collection are keyed.
type DetailScope string

const (
	// DetailGlobal keys details by entity id alone. Entity ids are GUIDs, so
	// collisions across outlets are not expected, but a detail cached while
	// working in one outlet is visible from another.
	DetailGlobal DetailScope = "global"

	// DetailOutlet keys details by (outlet, entity id).
	DetailOutlet DetailScope = "outlet"
)

// Collection describes one mirrored server collection.
type Collection struct {
	// Name is the store collection and API path segment, e.g. "products".
	Name string `json:"name"`

	// EntityType tags pending mutations, e.g. "product".
	EntityType string `json:"entity_type"`

	// Path is the backend resource path, e.g. "/products".
	Path string `json:"path"`

	DetailScope DetailScope `json:"detail_scope"`

	// AddedIn is the schema version that introduced the collection.
	AddedIn uint64 `json:"added_in"`
}

// Catalog lists every collection the agent mirrors, in registration order.
var Catalog = []Collection{
	{Name: "products", EntityType: "product", Path: "/products", DetailScope: DetailGlobal, AddedIn: 1},
	{Name: "employees", EntityType: "employee", Path: "/employees", DetailScope: DetailGlobal, AddedIn: 1},
	{Name: "transactions", EntityType: "transaction", Path: "/transactions", DetailScope: DetailGlobal, AddedIn: 1},
	{Name: "expenses", EntityType: "expense", Path: "/expenses", DetailScope: DetailOutlet, AddedIn: 1},
	{Name: "purchases", EntityType: "purchase", Path: "/purchases", DetailScope: DetailOutlet, AddedIn: 1},
	{Name: "shifts", EntityType: "shift", Path: "/shifts", DetailScope: DetailOutlet, AddedIn: 1},
	{Name: "customers", EntityType: "customer", Path: "/customers", DetailScope: DetailGlobal, AddedIn: 1},
	{Name: "checkins", EntityType: "checkin", Path: "/front-office/checkins", DetailScope: DetailOutlet, AddedIn: 2},
}

// LookupCollection finds a catalog entry by name.
func LookupCollection(name string) (Collection, bool) {
	for _, c := range Catalog {
		if c.Name == name {
			return c, true
		}
	}
	return Collection{}, false
}

// LookupEntityType finds a catalog entry by its pending-mutation tag.
func LookupEntityType(entityType string) (Collection, bool) {
	for _, c := range Catalog {
		if c.EntityType == entityType {
			return c, true
		}
	}
	return Collection{}, false
}
