package seeds

func SeedAll() error {
	if err := SeedMembers(); err != nil {
		return err
	}
	if err := SeedDemoConfig(); err != nil {
		return err
	}
	return nil
}
