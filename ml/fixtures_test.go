package ml

import (
	"carprice/models"
)

func sampleRecords() []models.SaleRecord {
	return []models.SaleRecord{
		{Brand: "Toyota", Model: "Corolla", Year: 2020, Mileage: 30000, FuelType: "Petrol", Transmission: "Manual", Price: 18500},
		{Brand: "Toyota", Model: "Corolla", Year: 2017, Mileage: 72000, FuelType: "Petrol", Transmission: "Automatic", Price: 13200},
		{Brand: "Toyota", Model: "Prius", Year: 2019, Mileage: 41000, FuelType: "Hybrid", Transmission: "Automatic", Price: 21000},
		{Brand: "Honda", Model: "Civic", Year: 2018, Mileage: 45000, FuelType: "Petrol", Transmission: "Manual", Price: 15000},
		{Brand: "Honda", Model: "Civic", Year: 2021, Mileage: 12000, FuelType: "Petrol", Transmission: "Automatic", Price: 22500},
		{Brand: "Honda", Model: "Jazz", Year: 2015, Mileage: 98000, FuelType: "Petrol", Transmission: "Manual", Price: 7800},
		{Brand: "Ford", Model: "Focus", Year: 2016, Mileage: 88000, FuelType: "Diesel", Transmission: "Manual", Price: 8900},
		{Brand: "Ford", Model: "Fiesta", Year: 2019, Mileage: 35000, FuelType: "Petrol", Transmission: "Manual", Price: 11500},
		{Brand: "BMW", Model: "320d", Year: 2018, Mileage: 60000, FuelType: "Diesel", Transmission: "Automatic", Price: 24000},
		{Brand: "BMW", Model: "X5", Year: 2020, Mileage: 40000, FuelType: "Diesel", Transmission: "Automatic", Price: 48000},
		{Brand: "Volkswagen", Model: "Golf", Year: 2017, Mileage: 65000, FuelType: "Petrol", Transmission: "Manual", Price: 12000},
		{Brand: "Volkswagen", Model: "Golf", Year: 2021, Mileage: 15000, FuelType: "Electric", Transmission: "Automatic", Price: 29500},
	}
}

func testTrainConfig() TrainConfig {
	cfg := DefaultTrainConfig()
	cfg.NumTrees = 20
	return cfg
}
