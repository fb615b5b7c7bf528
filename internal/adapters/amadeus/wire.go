package amadeus

import (
	"encoding/json"
	"strconv"
	"strings"

	"hotelsync/internal/domain"
)

// Wire shapes for the Amadeus JSON responses, plus their translation into
// normalized transfer records.

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// flexFloat tolerates numbers serialized as strings ("200.00") or as bare
// JSON numbers.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

type hotelListResponse struct {
	Data []struct {
		HotelID string `json:"hotelId"`
		Name    string `json:"name"`
		Address struct {
			Lines       []string `json:"lines"`
			AddressLine string   `json:"addressLine"`
			CityName    string   `json:"cityName"`
			PostalCode  string   `json:"postalCode"`
			CountryCode string   `json:"countryCode"`
		} `json:"address"`
		GeoCode *struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"geoCode"`
		Rating *flexFloat `json:"rating"`
	} `json:"data"`
}

type offersResponse struct {
	Data []struct {
		Hotel struct {
			HotelID string `json:"hotelId"`
		} `json:"hotel"`
		Offers []struct {
			ID           string `json:"id"`
			CheckInDate  string `json:"checkInDate"`
			CheckOutDate string `json:"checkOutDate"`
			Room         struct {
				Type          string `json:"type"`
				TypeEstimated *struct {
					Category string `json:"category"`
					Beds     int    `json:"beds"`
					BedType  string `json:"bedType"`
				} `json:"typeEstimated"`
				Description struct {
					Text string `json:"text"`
				} `json:"description"`
			} `json:"room"`
			Price struct {
				Currency string    `json:"currency"`
				Total    flexFloat `json:"total"`
			} `json:"price"`
			Policies     json.RawMessage `json:"policies"`
			Cancellation json.RawMessage `json:"cancellation"`
		} `json:"offers"`
	} `json:"data"`
}

type sentimentsResponse struct {
	Data []struct {
		HotelID         string               `json:"hotelId"`
		OverallRating   flexFloat            `json:"overallRating"`
		NumberOfReviews *int                 `json:"numberOfReviews"`
		Sentiments      map[string]flexFloat `json:"sentiments"`
	} `json:"data"`
}

func parseHotels(resp hotelListResponse) []domain.HotelRecord {
	out := make([]domain.HotelRecord, 0, len(resp.Data))
	for _, h := range resp.Data {
		line := h.Address.AddressLine
		if line == "" && len(h.Address.Lines) > 0 {
			line = strings.Join(h.Address.Lines, " ")
		}
		rec := domain.HotelRecord{
			ExternalID: h.HotelID,
			Name:       h.Name,
			Address: domain.Address{
				Line:        line,
				City:        h.Address.CityName,
				PostalCode:  h.Address.PostalCode,
				CountryCode: h.Address.CountryCode,
			},
			// the list endpoints carry no description
		}
		if h.GeoCode != nil {
			rec.Geo = &domain.GeoCode{Latitude: h.GeoCode.Latitude, Longitude: h.GeoCode.Longitude}
		}
		if h.Rating != nil {
			r := float64(*h.Rating)
			rec.Rating = &r
		}
		out = append(out, rec)
	}
	return out
}

func parseOffers(resp offersResponse) []domain.OfferRecord {
	var out []domain.OfferRecord
	for _, hd := range resp.Data {
		for _, o := range hd.Offers {
			room := domain.RoomRecord{
				Type:        o.Room.Type,
				Description: o.Room.Description.Text,
			}
			if room.Type == "" {
				room.Type = "UNKNOWN"
			}
			if o.Room.TypeEstimated != nil {
				room.Estimate = &domain.TypeEstimate{
					Category: o.Room.TypeEstimated.Category,
					Beds:     o.Room.TypeEstimated.Beds,
					BedType:  o.Room.TypeEstimated.BedType,
				}
			}
			out = append(out, domain.OfferRecord{
				HotelExternalID: hd.Hotel.HotelID,
				OfferID:         o.ID,
				Price:           float64(o.Price.Total),
				Currency:        o.Price.Currency,
				CheckIn:         o.CheckInDate,
				CheckOut:        o.CheckOutDate,
				Room:            room,
				Policies:        o.Policies,
				Cancellation:    o.Cancellation,
			})
		}
	}
	return out
}

func parseRatings(resp sentimentsResponse) []domain.RatingRecord {
	out := make([]domain.RatingRecord, 0, len(resp.Data))
	for _, r := range resp.Data {
		rec := domain.RatingRecord{
			HotelExternalID: r.HotelID,
			OverallRating:   float64(r.OverallRating),
			ReviewCount:     r.NumberOfReviews,
		}
		if len(r.Sentiments) > 0 {
			rec.CategoryRatings = make(map[string]float64, len(r.Sentiments))
			for k, v := range r.Sentiments {
				rec.CategoryRatings[k] = float64(v)
			}
		}
		out = append(out, rec)
	}
	return out
}
