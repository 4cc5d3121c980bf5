package reconciler

import (
	"sort"
	"strings"

	"github.com/agentstation/brightsync/pkg/catalog"
	"github.com/agentstation/brightsync/pkg/constants"
)

// resolveImage picks the image of one variant: the product image, then the
// primary gallery image, then the image of a sub-option whose code is one
// of the variant parts of finalSKU. The result is an absolute URL or "".
func (e *Engine) resolveImage(detail *catalog.ProductDetail, parentSKU, finalSKU string) string {
	base := e.options.imageBase
	if img := catalog.ResolveURL(detail.Image, base); img != "" {
		return img
	}
	if img := catalog.ResolveURL(detail.PrimaryImage(), base); img != "" {
		return img
	}
	return catalog.ResolveURL(subOptionImage(detail.Options, parentSKU, finalSKU, e.store.SKUSeparator), base)
}

// subOptionImage matches the variant parts of finalSKU, those past the
// parent SKU's parts, against sub-option codes. Options are searched in
// position order; options without a position sort last.
func subOptionImage(options []catalog.Option, parentSKU, finalSKU, sep string) string {
	if sep == "" {
		sep = constants.DefaultSKUSeparator
	}
	parts := strings.Split(finalSKU, sep)
	skip := 0
	if parentSKU != "" {
		skip = len(strings.Split(parentSKU, sep))
	}
	if len(parts) <= skip {
		return ""
	}
	variant := make(map[string]struct{}, len(parts)-skip)
	for _, part := range parts[skip:] {
		if part = strings.TrimSpace(part); part != "" {
			variant[strings.ToUpper(part)] = struct{}{}
		}
	}

	ordered := make([]catalog.Option, len(options))
	copy(ordered, options)
	sort.SliceStable(ordered, func(i, j int) bool {
		return position(ordered[i]) < position(ordered[j])
	})

	for _, opt := range ordered {
		for _, sub := range opt.SubOptions {
			code := strings.ToUpper(strings.TrimSpace(sub.SubSKU))
			if code == "" || strings.TrimSpace(sub.ImageSrc) == "" {
				continue
			}
			if _, ok := variant[code]; ok {
				return sub.ImageSrc
			}
		}
	}
	return ""
}

func position(opt catalog.Option) int {
	if opt.Position == nil {
		return constants.DefaultOptionPosition
	}
	return *opt.Position
}
