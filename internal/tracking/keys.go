package tracking

import "strconv"

// Composite keys over the kv substrate. Product ids and event types are
// validated to exclude '/', which keeps every composite key unambiguous
// even when actor addresses contain arbitrary characters (the actor is
// always the final segment).
const (
	eventSeqKey       = "eventseq"
	totalProductsKey  = "stats/total"
	activeProductsKey = "stats/active"
)

func productKey(id string) string {
	return "product/" + id
}

func eventIDsKey(id string) string {
	return "eventids/" + id
}

func eventKey(eventID uint64) string {
	return "event/" + strconv.FormatUint(eventID, 10)
}

func authKey(productID, actor string) string {
	return "auth/" + productID + "/" + actor
}

func typeCountKey(productID, eventType string) string {
	return "typecount/" + productID + "/" + eventType
}

// typeIndexKey addresses position pos (1-based) of the dense per-type index.
func typeIndexKey(productID, eventType string, pos uint64) string {
	return "typeidx/" + productID + "/" + eventType + "/" + strconv.FormatUint(pos, 10)
}
