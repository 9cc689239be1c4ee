package domain

// ShelterType classifies the facility operating a shelter.
type ShelterType string

const (
	ShelterHospital   ShelterType = "hospital"
	ShelterSchool     ShelterType = "school"
	ShelterCommunity  ShelterType = "community"
	ShelterGovernment ShelterType = "government"
)

// Shelter is an emergency facility from the static directory.
type Shelter struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Address  string      `json:"address"`
	Phone    string      `json:"phone"`
	Lat      float64     `json:"lat"`
	Lng      float64     `json:"lng"`
	Capacity int         `json:"capacity"`
	Type     ShelterType `json:"type"`
}

// Location returns the shelter's position.
func (s Shelter) Location() UserLocation {
	return UserLocation{Lat: s.Lat, Lng: s.Lng}
}

// DefaultCenter is the map centre used before the user's position is known.
var DefaultCenter = UserLocation{Lat: 25.033, Lng: 121.5654}

var shelters = []Shelter{
	{ID: "s-001", Name: "台北市政府防災中心", Address: "台北市信義區市府路1號", Phone: "02-2720-8889", Lat: 25.0375, Lng: 121.5637, Capacity: 500, Type: ShelterGovernment},
	{ID: "s-002", Name: "國立台灣大學醫學院附設醫院", Address: "台北市中正區中山南路7號", Phone: "02-2312-3456", Lat: 25.0408, Lng: 121.5190, Capacity: 300, Type: ShelterHospital},
	{ID: "s-003", Name: "信義國民小學", Address: "台北市信義區松勤街60號", Phone: "02-2723-6771", Lat: 25.0320, Lng: 121.5650, Capacity: 800, Type: ShelterSchool},
	{ID: "s-004", Name: "大安森林公園活動中心", Address: "台北市大安區新生南路二段1號", Phone: "02-2700-3830", Lat: 25.0298, Lng: 121.5358, Capacity: 1200, Type: ShelterCommunity},
	{ID: "s-005", Name: "台北馬偕紀念醫院", Address: "台北市中山區中山北路二段92號", Phone: "02-2543-3535", Lat: 25.0583, Lng: 121.5227, Capacity: 250, Type: ShelterHospital},
	{ID: "s-006", Name: "松山區民活動中心", Address: "台北市松山區八德路四段692號", Phone: "02-2763-1005", Lat: 25.0497, Lng: 121.5775, Capacity: 400, Type: ShelterCommunity},
	{ID: "s-007", Name: "中正國民中學", Address: "台北市中正區愛國東路158號", Phone: "02-2351-0033", Lat: 25.0336, Lng: 121.5253, Capacity: 900, Type: ShelterSchool},
	{ID: "s-008", Name: "內湖區公所", Address: "台北市內湖區民權東路六段99號", Phone: "02-2792-5828", Lat: 25.0690, Lng: 121.5890, Capacity: 350, Type: ShelterGovernment},
}

// Shelters returns a copy of the static shelter directory.
func Shelters() []Shelter {
	out := make([]Shelter, len(shelters))
	copy(out, shelters)
	return out
}
