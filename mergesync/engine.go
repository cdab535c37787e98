package mergesync

import (
	"sort"

	"bitbucket.org/mmjourneys/travel_backend/models"
	"bitbucket.org/mmjourneys/travel_backend/utils"
)

// Engine groups source records into identity groups and resolves each group
// to one merged field set. Not safe for concurrent use: grouping and merging
// are single-threaded over the batch by design, only the source reads fan out.
type Engine struct {
	businessId string
	groups     map[GroupKey]*IdentityGroup
	order      []GroupKey
}

func NewEngine(businessId string) *Engine {
	return &Engine{
		businessId: businessId,
		groups:     map[GroupKey]*IdentityGroup{},
	}
}

// Add routes a source record into its identity group, creating the group on
// first sight and re-electing the primary when a higher-scoring source arrives.
func (e *Engine) Add(rec SourceRecord) {
	rec.ExternalReference = utils.NormalizeExternalReference(rec.ExternalReference)
	key := GroupKey{ChannelCode: rec.ChannelCode, ExternalReference: rec.ExternalReference}

	group, ok := e.groups[key]
	if !ok {
		e.groups[key] = &IdentityGroup{Key: key, Primary: rec, Sources: []SourceRecord{rec}}
		e.order = append(e.order, key)
		return
	}

	group.Sources = append(group.Sources, rec)
	if BetterPrimary(rec, group.Primary) {
		group.Primary = rec
	}
}

// GroupCount returns the number of identity groups formed so far.
func (e *Engine) GroupCount() int {
	return len(e.groups)
}

// Resolve produces one merged booking per identity group, in a deterministic
// order independent of input order.
func (e *Engine) Resolve() []MergedBooking {
	keys := make([]GroupKey, len(e.order))
	copy(keys, e.order)
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].ChannelCode != keys[j].ChannelCode {
			return keys[i].ChannelCode < keys[j].ChannelCode
		}
		return keys[i].ExternalReference < keys[j].ExternalReference
	})

	merged := make([]MergedBooking, 0, len(keys))
	for _, key := range keys {
		merged = append(merged, e.resolveGroup(e.groups[key]))
	}
	return merged
}

func (e *Engine) resolveGroup(group *IdentityGroup) MergedBooking {
	primary := group.Primary
	canonicalKey := models.BookingKey(e.businessId, group.Key.ChannelCode, group.Key.ExternalReference).String()

	m := MergedBooking{
		CanonicalKey:      canonicalKey,
		BusinessId:        e.businessId,
		ChannelCode:       group.Key.ChannelCode,
		ExternalReference: group.Key.ExternalReference,
		PrimarySource:     primary.SourceSystem,
		PrimarySourceKey:  primary.SourcePrimaryKey,
		SourceScore:       Score(primary),

		CustomerName:     PickContactName(group.Sources),
		CustomerEmail:    PickContactEmail(group.Sources),
		CustomerPhone:    PickContactPhone(group.Sources),
		CustomerLocation: PickContactLocation(group.Sources),

		PaymentStatus:     ResolvePaymentStatus(group.Sources),
		FulfillmentStatus: NormalizeFulfillmentStatus(primary.StatusText),

		ProductCode: primary.ProductCode,
		AdultCount:  primary.AdultCount,
		ChildCount:  primary.ChildCount,
		TotalAmount: primary.TotalAmount,
		Currency:    primary.Currency,
		TravelDate:  primary.TravelDate,

		Sources: group.Sources,
	}
	m.Items = BuildBookingItems(e.businessId, canonicalKey, primary)
	return m
}
