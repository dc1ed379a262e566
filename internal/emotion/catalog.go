package emotion

// Display holds presentation metadata for a tag.
type Display struct {
	Icon  string
	Group int // 1 negative, 2 positive, 3 neutral
}

// Catalog maps tags to display metadata. Lookups never fail: unknown tags
// get the fallback icon and group 0.
type Catalog struct {
	fallback string
	entries  map[Tag]Display
}

// NewCatalog creates a catalog. An empty fallback defaults to "?".
func NewCatalog(fallback string, entries map[Tag]Display) *Catalog {
	if fallback == "" {
		fallback = "?"
	}
	if entries == nil {
		entries = map[Tag]Display{}
	}
	return &Catalog{fallback: fallback, entries: entries}
}

// Icon returns the icon for t, or the fallback icon.
func (c *Catalog) Icon(t Tag) string {
	if c == nil {
		return ""
	}
	if d, ok := c.entries[t]; ok && d.Icon != "" {
		return d.Icon
	}
	return c.fallback
}

// Group returns the sentiment group for t, or 0 for unknown tags.
func (c *Catalog) Group(t Tag) int {
	if c == nil {
		return 0
	}
	return c.entries[t].Group
}
