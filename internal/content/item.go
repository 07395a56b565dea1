package content

// Item is a single piece of content addressed by URI. Name is optional
// display metadata carried alongside the handle.
type Item struct {
	URI  string
	Name string
}
