// Command sitectl switches maintenance and debug mode from the shell, for when
// the admin pages themselves are unreachable.
//
//	sitectl -as admin -maintenance on -message "Back at 10:00"
//	sitectl -as admin -debug off
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ttt-platform/trash2treasure/config"
	"github.com/ttt-platform/trash2treasure/models"
	"github.com/ttt-platform/trash2treasure/services"
	"github.com/ttt-platform/trash2treasure/utils"
)

func main() {
	as := flag.String("as", "", "admin username recorded as the editor")
	maintenance := flag.String("maintenance", "", "on or off")
	debug := flag.String("debug", "", "on or off")
	message := flag.String("message", "", "maintenance message shown to visitors")
	flag.Parse()

	if err := run(*as, *maintenance, *debug, *message); err != nil {
		fmt.Fprintln(os.Stderr, "sitectl:", err)
		os.Exit(1)
	}
}

func run(as, maintenance, debug, message string) error {
	in := services.SettingsInput{}
	var err error
	if in.MaintenanceMode, err = parseSwitch("maintenance", maintenance); err != nil {
		return err
	}
	if in.DebugMode, err = parseSwitch("debug", debug); err != nil {
		return err
	}
	if message != "" {
		in.MaintenanceMessage = &message
	}
	if in.MaintenanceMode == nil && in.DebugMode == nil && in.MaintenanceMessage == nil {
		flag.Usage()
		return fmt.Errorf("nothing to change")
	}
	if as == "" {
		return fmt.Errorf("-as is required")
	}

	cfg := config.Load()
	if err := utils.InitLogger(cfg); err != nil {
		return err
	}
	defer utils.CloseRedis()
	db := config.InitDatabase(models.All()...)

	var admin models.User
	if err := db.Where("username = ? AND user_type = ?", as, models.RoleAdmin).First(&admin).Error; err != nil {
		return fmt.Errorf("admin %q: %w", as, err)
	}
	st, err := services.NewSettingsService(db).Update(&admin, in)
	if err != nil {
		return err
	}
	fmt.Printf("maintenance=%s debug=%s\n", onOff(st.MaintenanceMode), onOff(st.DebugMode))
	return nil
}

func parseSwitch(name, v string) (*bool, error) {
	switch v {
	case "":
		return nil, nil
	case "on", "true", "1":
		b := true
		return &b, nil
	case "off", "false", "0":
		b := false
		return &b, nil
	}
	return nil, fmt.Errorf("-%s must be on or off, got %q", name, v)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
