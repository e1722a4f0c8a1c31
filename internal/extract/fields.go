package extract

import "github.com/andybalholm/cascadia"

var (
	titleField = Field{
		Name: "title",
		Selectors: texts(
			`h1[data-qa="mfe-game-title#name"]`,
			`h1.pdp-product-name`,
			`h1[class*="product-name"]`,
			`h1[data-qa*="product-name"]`,
			`h1`,
			`[data-qa="product-name"]`,
			`.product-title`,
		),
		Meta:       metas("og:title", "twitter:title", "title"),
		Structured: []string{"name", "headline"},
	}

	originalPriceField = Field{
		Name: "originalPrice",
		Selectors: texts(
			`[data-qa="mfeCtaMain#offer0#originalPrice"]`,
			`.price-display__strikethrough`,
			`[class*="original-price"]`,
			`[class*="was-price"]`,
			`[class*="strikethrough"]`,
		),
	}

	discountField = Field{
		Name: "discount",
		Selectors: texts(
			`[data-qa="mfeCtaMain#offer0#discountBadge"]`,
			`[class*="discount-badge"]`,
			`[class*="discount"]`,
			`[class*="sale-badge"]`,
			`[class*="save"]`,
		),
	}

	descriptionField = Field{
		Name: "description",
		Selectors: texts(
			`[data-qa="mfe-game-overview#description"]`,
			`[data-qa*="description"]`,
			`.pdp-product-description`,
			`[class*="product-description"]`,
			`[class*="description"] p`,
			`p[class*="description"]`,
		),
		Meta:       metas("description", "og:description"),
		Structured: []string{"description"},
	}

	ratingField = Field{
		Name: "rating",
		Selectors: texts(
			`[data-qa="mfe-star-rating#overall-rating"]`,
			`[data-qa*="rating"]`,
			`[class*="rating"]`,
			`[class*="star-rating"]`,
			`[aria-label*="rating"], [aria-label*="Rating"]`,
		),
		Structured: []string{"aggregateRating.ratingValue"},
	}

	platformField = Field{
		Name: "platform",
		Selectors: texts(
			`[data-qa="mfe-game-title#platform"]`,
			`[data-qa*="platform"]`,
			`[class*="platform"]`,
		),
		Structured: []string{"gamePlatform", "gamePlatform.0"},
	}

	publisherField = Field{
		Name: "publisher",
		Selectors: texts(
			`[data-qa="mfe-game-title#publisher"]`,
			`[data-qa*="publisher"]`,
			`[class*="publisher"]`,
		),
		Structured: []string{"publisher.name", "publisher"},
	}

	releaseDateField = Field{
		Name: "releaseDate",
		Selectors: texts(
			`[data-qa="mfe-game-title#release-date"]`,
			`[data-qa*="release"]`,
			`[class*="release-date"]`,
		),
		Structured: []string{"datePublished", "releaseDate"},
	}

	imageField = Field{
		Name: "image",
		Selectors: []Source{
			attr(`img[data-qa="game-overview#hero-image"], img[class*="hero"], img[class*="product-image"]`, "src"),
		},
		Meta:       metas("og:image", "twitter:image"),
		Structured: []string{"image", "image.0", "image.url"},
	}

	priceMeta = metas("product:price:amount")

	genreSel = cascadia.MustCompile(`[data-qa*="genre"], [class*="genre"]`)
)

// Fields lists every scalar descriptor the engine resolves.
var Fields = []Field{
	titleField,
	originalPriceField,
	discountField,
	descriptionField,
	ratingField,
	platformField,
	publisherField,
	releaseDateField,
	imageField,
}
