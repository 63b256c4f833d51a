// Package render turns stream records into the result card markup shown on
// the Results panel.
package render

import (
	"html"
	"net/url"
	"strconv"
	"strings"

	"github.com/Its-donkey/raidfinder/internal/ui/model"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	// Spacer brackets every rendered result list.
	Spacer = `<div class="empty"></div>`
	// ThumbnailSize fills the {width}x{height} slot of Twitch thumbnail URLs.
	ThumbnailSize        = "300x168"
	thumbnailPlaceholder = "{width}x{height}"
	// DefaultAvatar is used when a record carries no profile image.
	DefaultAvatar = "https://static-cdn.jtvnw.net/user-default-pictures-uv/75305d54-c7cc-40d1-bb9c-91fbe85943c7-profile_image-150x150.png"
	// ChannelBase prefixes the channel name in card links.
	ChannelBase = "https://www.twitch.tv/"
)

// CardTemplate is the markup skeleton for one result. The first {NAME} sits
// in the link and is path escaped; every other field is HTML escaped.
const CardTemplate = `<a class="result_card" href="` + ChannelBase + `{NAME}">` +
	`<img src="{THUMBNAIL}">` +
	`<div class="gradient"></div>` +
	`<img class="avatar" src="{AVATAR}">` +
	`<p class="stream_username">{NAME}</p>` +
	`<p class="stream_title">{TITLE}</p>` +
	`<p class="stream_viewers">•{VIEWERS}</p>` +
	`<p class="stream_time">{TIME}</p>` +
	`<p class="result_label">{INDEX}</p>` +
	`</a>`

// Renderer substitutes records into a card template.
type Renderer struct {
	template string
	printer  *message.Printer
}

// New returns a Renderer that formats viewer counts for tag. The zero tag
// falls back to English.
func New(tag language.Tag) *Renderer {
	if tag == language.Und {
		tag = language.English
	}
	return &Renderer{template: CardTemplate, printer: message.NewPrinter(tag)}
}

// WithTemplate swaps the card skeleton. Placeholders are the same as CardTemplate.
func (r *Renderer) WithTemplate(tpl string) *Renderer {
	return &Renderer{template: tpl, printer: r.printer}
}

// Viewers formats a viewer count with the locale's thousands separator.
func (r *Renderer) Viewers(n int) string {
	return r.printer.Sprintf("%d", n)
}

// Card renders one record at a 1-based rank.
func (r *Renderer) Card(rec model.StreamRecord, index int) string {
	avatar := strings.TrimSpace(rec.ProfileImageURL)
	if avatar == "" {
		avatar = DefaultAvatar
	}
	fields := strings.NewReplacer(
		"{NAME}", html.EscapeString(rec.Name),
		"{TITLE}", html.EscapeString(rec.StreamTitle),
		"{VIEWERS}", html.EscapeString(r.Viewers(rec.ViewerCount)),
		"{THUMBNAIL}", html.EscapeString(Thumbnail(rec.ThumbnailURL)),
		"{AVATAR}", html.EscapeString(avatar),
		"{TIME}", html.EscapeString(rec.StreamDuration),
		"{INDEX}", strconv.Itoa(index),
	)

	head, tail, found := strings.Cut(r.template, "{NAME}")
	if !found {
		return fields.Replace(r.template)
	}
	return fields.Replace(head) + html.EscapeString(url.PathEscape(rec.Name)) + fields.Replace(tail)
}

// Render emits the spacer, one card per record in order, and a closing spacer.
func (r *Renderer) Render(records []model.StreamRecord) string {
	var builder strings.Builder
	builder.WriteString(Spacer)
	for i, rec := range records {
		builder.WriteString(r.Card(rec, i+1))
	}
	builder.WriteString(Spacer)
	return builder.String()
}

// Thumbnail sizes a Twitch thumbnail template. Only the first placeholder is replaced.
func Thumbnail(raw string) string {
	return strings.Replace(raw, thumbnailPlaceholder, ThumbnailSize, 1)
}

// Container accumulates rendered fragments the way innerHTML += does.
type Container struct {
	builder strings.Builder
}

// Append adds fragment after the existing content.
func (c *Container) Append(fragment string) {
	c.builder.WriteString(fragment)
}

// Clear drops all accumulated content.
func (c *Container) Clear() {
	c.builder.Reset()
}

// HTML returns the accumulated markup.
func (c *Container) HTML() string {
	return c.builder.String()
}
