package domain

import (
	"math"
	"strings"
	"time"
)

// Zone is the coarse distance band between two addresses.
type Zone string

const (
	ZoneLocal      Zone = "local"
	ZoneProvincial Zone = "provincial"
	ZoneNational   Zone = "national"
)

// ZoneBetween returns local for the same city, provincial for the same
// province and national otherwise. Comparison ignores case and spacing.
func ZoneBetween(from, to Address) Zone {
	if sameText(from.City, to.City) {
		return ZoneLocal
	}
	fp, fok := NormalizeProvince(from.Province)
	tp, tok := NormalizeProvince(to.Province)
	if fok && tok && fp == tp {
		return ZoneProvincial
	}
	if !fok && !tok && sameText(from.Province, to.Province) {
		return ZoneProvincial
	}
	return ZoneNational
}

func sameText(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	return a != "" && strings.EqualFold(a, b)
}

// ServiceLevel distinguishes courier speed tiers.
type ServiceLevel string

const (
	ServiceEconomy ServiceLevel = "economy"
	ServiceExpress ServiceLevel = "express"
)

// volumetricDivisor converts cm³ to volumetric kg.
const volumetricDivisor = 5000.0

// Parcel is the package being shipped.
type Parcel struct {
	WeightKg float64 `json:"weight_kg"`
	LengthCm float64 `json:"length_cm"`
	WidthCm  float64 `json:"width_cm"`
	HeightCm float64 `json:"height_cm"`
	Value    int64   `json:"value"` // declared value in cents
}

// VolumetricWeight is L×W×H/5000 in kg.
func (p Parcel) VolumetricWeight() float64 {
	return p.LengthCm * p.WidthCm * p.HeightCm / volumetricDivisor
}

// BillableWeight is the larger of actual and volumetric weight.
func (p Parcel) BillableWeight() float64 {
	return math.Max(p.WeightKg, p.VolumetricWeight())
}

// DefaultParcel is a single textbook when the caller gives no dimensions.
func DefaultParcel() Parcel {
	return Parcel{WeightKg: 1, LengthCm: 30, WidthCm: 25, HeightCm: 5}
}

// QuoteRequest asks for delivery prices between two addresses.
type QuoteRequest struct {
	From   Address `json:"from"`
	To     Address `json:"to"`
	Parcel Parcel  `json:"parcel"`
}

// Quote is one priced delivery option.
type Quote struct {
	Provider     string       `json:"provider"`
	ServiceName  string       `json:"service_name"`
	ServiceCode  string       `json:"service_code,omitempty"`
	ServiceLevel ServiceLevel `json:"service_level"`
	Price        int64        `json:"price"` // cents
	TransitDays  int          `json:"transit_days"`
	Zone         Zone         `json:"zone"`
	Fallback     bool         `json:"fallback"`
}

// ShipmentRequest books a collection from the seller to the buyer.
type ShipmentRequest struct {
	OrderID        string    `json:"order_id"`
	Reference      string    `json:"reference"`
	Collection     Address   `json:"collection"`
	CollectionName string    `json:"collection_name"`
	CollectionMail string    `json:"collection_email"`
	Delivery       Address   `json:"delivery"`
	DeliveryName   string    `json:"delivery_name"`
	DeliveryMail   string    `json:"delivery_email"`
	Parcel         Parcel    `json:"parcel"`
	ServiceCode    string    `json:"service_code,omitempty"`
	CollectAfter   time.Time `json:"collect_after"`
}

// Shipment is a booked courier collection.
type Shipment struct {
	ShipmentID        string    `json:"shipment_id"`
	WaybillNumber     string    `json:"waybill_number"`
	PickupDate        time.Time `json:"pickup_date"`
	EstimatedDelivery time.Time `json:"estimated_delivery"`
}
