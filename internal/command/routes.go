package command

import (
	"fmt"
	"net/url"
)

// Filter selects one of the mechanic vehicle listings.
type Filter string

const (
	FilterAll      Filter = "all"
	FilterPending  Filter = "pending"
	FilterInUse    Filter = "in_use"
	FilterDelivery Filter = "delivery"
)

// Filters lists every listing the mechanic screen shows.
func Filters() []Filter {
	return []Filter{FilterAll, FilterPending, FilterInUse, FilterDelivery}
}

// ParseFilter validates a filter coming from a query string.
func ParseFilter(raw string) (Filter, error) {
	f := Filter(raw)
	if _, ok := listPaths[f]; !ok {
		return "", fmt.Errorf("unknown vehicle filter %q", raw)
	}
	return f, nil
}

var listPaths = map[Filter]string{
	FilterAll:      "/mechanic/all_vehicles",
	FilterPending:  "/mechanic/get_pending_vehicles",
	FilterInUse:    "/mechanic/get_in_use_vehicles",
	FilterDelivery: "/mechanic/get-delivery-vehicles",
}

// Flow is the mechanic workflow a photo upload belongs to.
type Flow string

// Phase is the side of the flow the photos document.
type Phase string

const (
	FlowCheck    Flow = "check"
	FlowDelivery Flow = "delivery"

	PhaseBefore Phase = "before"
	PhaseAfter  Phase = "after"
)

var uploadPaths = map[Flow]map[Phase]string{
	FlowCheck: {
		PhaseBefore: "/mechanic/upload-photos-before",
		PhaseAfter:  "/mechanic/upload-photos-after",
	},
	FlowDelivery: {
		PhaseBefore: "/mechanic/upload-delivery-photos-before",
		PhaseAfter:  "/mechanic/upload-delivery-photos-after",
	},
}

func uploadPath(flow Flow, phase Phase) (string, error) {
	p, ok := uploadPaths[flow][phase]
	if !ok {
		return "", fmt.Errorf("unknown upload target %s/%s", flow, phase)
	}
	return p, nil
}

const (
	pathStartDelivery    = "/mechanic/start-delivery"
	pathStartCheck       = "/mechanic/start"
	pathCancelCheck      = "/mechanic/cancel"
	pathCompleteCheck    = "/mechanic/complete"
	pathCompleteDelivery = "/mechanic/complete-delivery"
	pathCurrentDelivery  = "/mechanic/current-delivery"
)

func reservePath(carID int64) string {
	return fmt.Sprintf("/mechanic/check-car/%d", carID)
}

func acceptDeliveryPath(carID int64) string {
	return fmt.Sprintf("/mechanic/accept-delivery/%d", carID)
}

func searchPath(query string) string {
	return "/mechanic/search?query=" + url.QueryEscape(query)
}
