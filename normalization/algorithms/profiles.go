package algorithms

// vendorLegalSuffixes юридические формы, не различающие поставщиков
var vendorLegalSuffixes = []string{
	"inc", "incorporated", "llc", "ltd", "limited", "pty", "co", "corp",
	"corporation", "company", "gmbh", "plc", "lp", "llp", "sa", "ag",
}

// SKUProfile профиль для названий товаров в строках заказа
func SKUProfile() Profile {
	profile := DefaultProfile()
	profile.Name = "sku"
	return profile
}

// VendorProfile профиль для названий поставщиков: юридические формы считаются стоп-словами
func VendorProfile() Profile {
	profile := DefaultProfile()
	profile.Name = "vendor"
	for _, suffix := range vendorLegalSuffixes {
		profile.StopWords[suffix] = struct{}{}
	}
	profile.Abbreviations = map[string]string{
		"intl":  "international",
		"tech":  "technologies",
		"svcs":  "services",
		"mfg":   "manufacturing",
		"assoc": "associates",
	}
	return profile
}
