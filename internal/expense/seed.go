package expense

import (
	"fmt"

	"gestion-locative/internal/models"

	"gorm.io/gorm"
)

var DefaultTypes = []models.ExpenseType{
	{Name: "Entretien chaudière", Category: models.CategoryMaintenance, Recurring: true, TaxDeductible: true},
	{Name: "Eau parties communes", Category: models.CategoryCharges, Recurring: true, TaxDeductible: true},
	{Name: "Électricité parties communes", Category: models.CategoryCharges, Recurring: true, TaxDeductible: true},
	{Name: "Taxe foncière", Category: models.CategoryTax, Recurring: true, TaxDeductible: true},
	{Name: "Assurance PNO", Category: models.CategoryInsurance, Recurring: true, TaxDeductible: true},
	{Name: "Travaux de peinture", Category: models.CategoryWorks, Recurring: false, TaxDeductible: true},
}

// SeedDefaultTypes inserts the missing default types and returns how many
// were created.
func SeedDefaultTypes(db *gorm.DB) (int, error) {
	created := 0
	for _, def := range DefaultTypes {
		var count int64
		if err := db.Model(&models.ExpenseType{}).Where("name = ?", def.Name).Count(&count).Error; err != nil {
			return created, err
		}
		if count > 0 {
			continue
		}
		t := def
		if err := db.Create(&t).Error; err != nil {
			return created, fmt.Errorf("type %q: %w", def.Name, err)
		}
		created++
	}
	return created, nil
}
