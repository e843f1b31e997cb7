package models

// AggregatePoolID идентификатор общего пула, ограничивающего сумму всех тарифных пулов.
const AggregatePoolID = "AGGREGATE"

// SlotPool пул ограниченных лайфтайм-слотов для одного тарифа или общий пул.
type SlotPool struct {
	TierID   string `json:"tier_id"`
	Capacity int    `json:"capacity"`
	Claimed  int    `json:"claimed"`
}

// Available возвращает количество оставшихся слотов, не меньше нуля.
func (p SlotPool) Available() int {
	if p.Claimed >= p.Capacity {
		return 0
	}
	return p.Capacity - p.Claimed
}

// SlotAvailability представление доступности слотов для интерфейса.
// Не является основанием для решения о допуске.
type SlotAvailability struct {
	TierID    string `json:"tier_id"`
	Name      string `json:"name,omitempty"`
	Sold      int    `json:"sold"`
	Max       int    `json:"max"`
	Available int    `json:"available"`
}
