package wfm

import "encoding/json"

// Item is one catalog entry from /items.
type Item struct {
	URLName  string `json:"url_name"`
	ItemName string `json:"item_name"`
}

// itemsPayload tolerates both payload shapes the API has shipped: a plain
// list of items, and a language-keyed object whose values hold the list.
type itemsPayload struct {
	Payload struct {
		Items json.RawMessage `json:"items"`
	} `json:"payload"`
}

// Order is one visible order from /items/{url}/orders.
type Order struct {
	OrderType string  `json:"order_type"` // "buy" or "sell"
	Platinum  float64 `json:"platinum"`
	Quantity  int     `json:"quantity"`
	Visible   bool    `json:"visible"`
	User      struct {
		Status string `json:"status"` // "ingame", "online", "offline"
	} `json:"user"`
}

type ordersPayload struct {
	Payload struct {
		Orders []Order `json:"orders"`
	} `json:"payload"`
}

// StatBucket is one closed-statistics bucket (daily for 90days, hourly
// pairs for 48hours).
type StatBucket struct {
	Datetime string  `json:"datetime"`
	Volume   int     `json:"volume"`
	MinPrice float64 `json:"min_price"`
	MaxPrice float64 `json:"max_price"`
	AvgPrice float64 `json:"avg_price"`
	Median   float64 `json:"median"`
}

// Statistics holds the closed-trade buckets for one item.
type Statistics struct {
	Last48Hours []StatBucket
	Last90Days  []StatBucket
}

type statisticsPayload struct {
	Payload struct {
		StatisticsClosed struct {
			Hours48 []StatBucket `json:"48hours"`
			Days90  []StatBucket `json:"90days"`
		} `json:"statistics_closed"`
	} `json:"payload"`
}

// SetNode is one entry of an item's items_in_set list. The root node is
// the set itself; the rest are its parts.
type SetNode struct {
	URLName        string `json:"url_name"`
	SetRoot        bool   `json:"set_root"`
	QuantityForSet int    `json:"quantity_for_set"`
}

type itemDetailPayload struct {
	Payload struct {
		Item struct {
			ItemsInSet []SetNode `json:"items_in_set"`
		} `json:"item"`
	} `json:"payload"`
}

// SetComponent is a flattened (set, part, quantity) link.
type SetComponent struct {
	Set      string
	Part     string
	Quantity int
}
