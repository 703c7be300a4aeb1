package httpapi

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/crop-advisory/internal/advisory"
	"github.com/i474232898/crop-advisory/internal/crops"
	"github.com/i474232898/crop-advisory/internal/faq"
	"github.com/i474232898/crop-advisory/internal/fertilizer"
	"github.com/i474232898/crop-advisory/internal/market"
	"github.com/i474232898/crop-advisory/internal/weather"
)

var validate = validator.New()

// Used by the weather endpoint when the caller sends no coordinates.
var defaultCoordinates = weather.Coordinates{Lat: 15.8497, Lon: 74.4977}

const marketTopLimit = 10

// Recommender produces crop recommendations.
type Recommender interface {
	Recommend(ctx context.Context, req advisory.Request) (advisory.Recommendation, error)
}

// PriceService answers mandi price queries.
type PriceService interface {
	GetPrice(ctx context.Context, commodity, market string) (market.PriceRecord, error)
	TopPrices(ctx context.Context, commodity string, limit int) ([]market.PriceRecord, error)
}

// Answerer answers free-text farmer questions.
type Answerer interface {
	Answer(query string) (string, bool)
}

// Deps are the collaborators the routes delegate to. Geocoder may be nil; a nil
// FAQ answers every question with the fallback text.
type Deps struct {
	Advisor  Recommender
	Weather  advisory.WeatherSource
	Prices   PriceService
	Geocoder weather.Geocoder
	FAQ      Answerer
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	if deps.FAQ == nil {
		deps.FAQ = faq.NewMatcher(nil)
	}

	v1 := app.Group("/api/v1")

	v1.Post("/recommendation", func(c *fiber.Ctx) error {
		var req recommendationRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		coords, err := req.coordinates(c.UserContext(), deps.Geocoder)
		if err != nil {
			return err
		}

		rec, err := deps.Advisor.Recommend(c.UserContext(), advisory.Request{
			Coordinates: coords,
			SoilType:    req.SoilType,
			CropHistory: req.CropHistory,
			LandArea:    req.LandArea,
		})
		if err != nil {
			return recommendationError(err)
		}

		return c.JSON(rec)
	})

	v1.Get("/weather", func(c *fiber.Ctx) error {
		coords, err := parseCoordinatesQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		snap, err := deps.Weather.GetWeather(c.UserContext(), coords)
		if err != nil {
			return weatherError(err)
		}

		return c.JSON(fiber.Map{
			"success": true,
			"data":    snap,
		})
	})

	v1.Get("/market/:crop", func(c *fiber.Ctx) error {
		crop := strings.TrimSpace(c.Params("crop"))
		if crop == "" {
			return fiber.NewError(fiber.StatusBadRequest, "crop is required")
		}

		prices, err := deps.Prices.TopPrices(c.UserContext(), crop, marketTopLimit)
		if err != nil {
			if errors.Is(err, market.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no data found for crop: "+crop)
			}
			return fiber.NewError(fiber.StatusInternalServerError, "could not fetch market prices")
		}

		return c.JSON(fiber.Map{
			"success": true,
			"crop":    crop,
			"count":   len(prices),
			"prices":  prices,
		})
	})

	v1.Get("/market/:crop/price", func(c *fiber.Ctx) error {
		crop := strings.TrimSpace(c.Params("crop"))
		price, err := deps.Prices.GetPrice(c.UserContext(), crop, c.Query("market"))
		if err != nil {
			if errors.Is(err, market.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no data found for crop: "+crop)
			}
			return fiber.NewError(fiber.StatusInternalServerError, "could not fetch market price")
		}

		return c.JSON(fiber.Map{
			"success": true,
			"price":   price,
		})
	})

	v1.Post("/npk-recommendation", func(c *fiber.Ctx) error {
		var req npkRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "required: pH (0-14), area_acres (> 0), crop")
		}

		rec, err := fertilizer.Recommend(fertilizer.Request{
			PH:        *req.PH,
			AreaAcres: *req.AreaAcres,
			Crop:      req.Crop,
		})
		if err != nil {
			if errors.Is(err, fertilizer.ErrUnsupportedCrop) {
				return fiber.NewError(fiber.StatusBadRequest,
					"crop not recognized or not supported; use e.g. rice, wheat, maize, groundnut, cotton, soybean, sugarcane, pulses")
			}
			return err
		}

		return c.JSON(fiber.Map{
			"success":        true,
			"recommendation": rec,
		})
	})

	v1.Post("/chatbot", func(c *fiber.Ctx) error {
		var req chatRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "query missing in request")
		}

		answer, matched := deps.FAQ.Answer(req.Query)
		return c.JSON(fiber.Map{
			"answer":  answer,
			"matched": matched,
		})
	})
}

type npkRequest struct {
	PH        *float64 `json:"pH" validate:"required,gte=0,lte=14"`
	AreaAcres *float64 `json:"area_acres" validate:"required,gt=0"`
	Crop      string   `json:"crop" validate:"required"`
}

type chatRequest struct {
	Query string `json:"query" validate:"required"`
}

// recommendationRequest is the JSON body of a recommendation request.
// Either lat/lon or city (with a configured geocoder) must be supplied.
type recommendationRequest struct {
	Lat         *float64 `json:"lat" validate:"required_without=City,omitempty,gte=-90,lte=90"`
	Lon         *float64 `json:"lon" validate:"required_with=Lat,omitempty,gte=-180,lte=180"`
	City        string   `json:"city"`
	Country     string   `json:"country"`
	SoilType    string   `json:"soil_type" validate:"required"`
	CropHistory []string `json:"crop_history"`
	LandArea    *float64 `json:"land_area" validate:"omitempty,gte=0"`
}

func (r recommendationRequest) coordinates(ctx context.Context, geo weather.Geocoder) (weather.Coordinates, error) {
	if r.Lat != nil && r.Lon != nil {
		return weather.Coordinates{Lat: *r.Lat, Lon: *r.Lon}, nil
	}
	if geo == nil {
		return weather.Coordinates{}, fiber.NewError(fiber.StatusBadRequest, "lat and lon are required")
	}
	coords, err := geo.Geocode(ctx, r.City, r.Country)
	if err != nil {
		return weather.Coordinates{}, fiber.NewError(fiber.StatusBadRequest, "could not resolve location: "+err.Error())
	}
	return coords, nil
}

// parseCoordinatesQuery reads lat/lon, falling back to defaultCoordinates when
// either is missing.
func parseCoordinatesQuery(c *fiber.Ctx) (weather.Coordinates, error) {
	latStr, lonStr := c.Query("lat"), c.Query("lon")
	if latStr == "" || lonStr == "" {
		return defaultCoordinates, nil
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil || lat < -90 || lat > 90 {
		return weather.Coordinates{}, errors.New("invalid lat")
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil || lon < -180 || lon > 180 {
		return weather.Coordinates{}, errors.New("invalid lon")
	}
	return weather.Coordinates{Lat: lat, Lon: lon}, nil
}

func recommendationError(err error) error {
	var le *crops.LoadError
	if errors.As(err, &le) {
		return fiber.NewError(fiber.StatusInternalServerError, "crop rules unavailable")
	}
	var fe *weather.FetchError
	if errors.As(err, &fe) {
		return weatherError(fe)
	}
	return fiber.NewError(fiber.StatusInternalServerError, "recommendation failed")
}

func weatherError(err error) error {
	var fe *weather.FetchError
	if !errors.As(err, &fe) {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch weather")
	}
	switch fe.Kind {
	case weather.KindInvalidRequest:
		return fiber.NewError(fiber.StatusBadRequest, "weather provider rejected the request")
	case weather.KindConfig:
		return fiber.NewError(fiber.StatusInternalServerError, "weather provider is not configured")
	default:
		return fiber.NewError(fiber.StatusBadGateway, "weather provider unavailable")
	}
}
