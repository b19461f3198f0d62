package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"fbadmin/internal/admin"
	"fbadmin/internal/credential"
	"fbadmin/internal/remoteconfig"
)

func newCmdConfig(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the Remote Config template",
		Args:  cobra.ArbitraryArgs,
		RunE:  usage,
	}
	cmd.AddCommand(newCmdConfigGet(rt))
	cmd.AddCommand(newCmdConfigPublish(rt))
	cmd.AddCommand(newCmdConfigValidate(rt))
	cmd.AddCommand(newCmdConfigVersions(rt))
	cmd.AddCommand(newCmdConfigRollback(rt))
	cmd.AddCommand(newCmdConfigAddCondition(rt))
	cmd.AddCommand(newCmdConfigAddParameter(rt))
	return cmd
}

// remoteConfigService builds the service against the Remote Config API
func (rt *runtime) remoteConfigService(ctx context.Context, pageSize int) (*remoteconfig.Service, error) {
	projectID, err := rt.projectID(ctx)
	if err != nil {
		return nil, err
	}
	cfg := rt.config.RemoteConfig
	if pageSize > 0 {
		cfg.VersionsPageSize = pageSize
	}
	rest := rt.restClient(admin.ServiceTypeRemoteConfig, nil, cfg.BaseURL, credential.ScopeRemoteConfig)
	return remoteconfig.NewService(remoteconfig.NewClient(rest, projectID), cfg, rt.in, rt.out, rt.logger), nil
}

// templateEditor builds a service that only edits the local template file
func (rt *runtime) templateEditor() (*remoteconfig.Service, error) {
	if err := rt.setup(); err != nil {
		return nil, err
	}
	return remoteconfig.NewService(nil, rt.config.RemoteConfig, rt.in, rt.out, rt.logger), nil
}

func newCmdConfigGet(rt *runtime) *cobra.Command {
	var version int64
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Download the active template (or an earlier version) to the template file",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if version < 0 {
				return fmt.Errorf("%w: version must be positive", admin.ErrInvalidArgument)
			}
			svc, err := rt.remoteConfigService(cmd.Context(), 0)
			if err != nil {
				return err
			}
			_, err = svc.Get(cmd.Context(), version)
			return err
		},
	}
	cmd.Flags().Int64Var(&version, "version", 0, "Template version to fetch (0 for the active one)")
	return cmd
}

func newCmdConfigPublish(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "publish <etag>",
		Short: "Publish the template file. ETag * force-replaces after confirmation.",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := rt.remoteConfigService(cmd.Context(), 0)
			if err != nil {
				return err
			}
			_, err = svc.Publish(cmd.Context(), args[0])
			return err
		},
	}
}

func newCmdConfigValidate(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [etag]",
		Short: "Validate the template file without publishing it",
		Args:  maxArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			etag := remoteconfig.ForceETag
			if len(args) == 1 {
				etag = args[0]
			}
			svc, err := rt.remoteConfigService(cmd.Context(), 0)
			if err != nil {
				return err
			}
			return svc.Validate(cmd.Context(), etag)
		},
	}
}

func newCmdConfigVersions(rt *runtime) *cobra.Command {
	var (
		pageSize int
		opts     remoteconfig.VersionsOptions
	)
	cmd := &cobra.Command{
		Use:   "versions",
		Short: "List the published template versions, newest first",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if pageSize < 0 || pageSize > 300 {
				return fmt.Errorf("%w: page size must be in 1..300", admin.ErrInvalidArgument)
			}
			if opts.All && opts.PageToken != "" {
				return fmt.Errorf("%w: --all and --page-token cannot be combined", admin.ErrInvalidArgument)
			}
			svc, err := rt.remoteConfigService(cmd.Context(), pageSize)
			if err != nil {
				return err
			}
			_, err = svc.Versions(cmd.Context(), opts)
			return err
		},
	}
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "Versions fetched per request (default from configuration)")
	cmd.Flags().StringVar(&opts.PageToken, "page-token", "", "Continue from the token printed by an earlier listing")
	cmd.Flags().BoolVar(&opts.All, "all", false, "Follow page tokens through the whole history")
	return cmd
}

func newCmdConfigRollback(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "rollback <version>",
		Short: "Make an earlier template version active",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || version <= 0 {
				return fmt.Errorf("%w: version must be a positive integer, got %q", admin.ErrInvalidArgument, args[0])
			}
			svc, err := rt.remoteConfigService(cmd.Context(), 0)
			if err != nil {
				return err
			}
			_, err = svc.Rollback(cmd.Context(), version)
			return err
		},
	}
}

func newCmdConfigAddCondition(rt *runtime) *cobra.Command {
	var (
		name       string
		expression string
		tagColor   string
	)
	cmd := &cobra.Command{
		Use:   "add-condition",
		Short: "Add a condition to the template file",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := rt.templateEditor()
			if err != nil {
				return err
			}
			return svc.AddCondition(remoteconfig.Condition{
				Name:       name,
				Expression: expression,
				TagColor:   remoteconfig.TagColor(strings.ToUpper(tagColor)),
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Condition name")
	cmd.Flags().StringVar(&expression, "expression", "", "Condition expression, e.g. device.os == 'ios'")
	cmd.Flags().StringVar(&tagColor, "tag-color", "", "Console tag color, e.g. GREEN")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("expression")
	return cmd
}

func newCmdConfigAddParameter(rt *runtime) *cobra.Command {
	var (
		group        string
		key          string
		value        string
		inAppDefault bool
		description  string
		valueType    string
		conditional  []string
	)
	cmd := &cobra.Command{
		Use:   "add-parameter",
		Short: "Add a parameter to a parameter group of the template file",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			param := remoteconfig.Parameter{
				Description: description,
				ValueType:   strings.ToUpper(valueType),
			}
			switch {
			case inAppDefault && cmd.Flags().Changed("value"):
				return fmt.Errorf("%w: --value and --in-app-default are exclusive", admin.ErrInvalidArgument)
			case inAppDefault:
				param.DefaultValue = remoteconfig.InAppDefault()
			default:
				param.DefaultValue = remoteconfig.ExplicitValue(value)
			}
			for _, c := range conditional {
				condition, v, ok := strings.Cut(c, "=")
				if !ok || condition == "" {
					return fmt.Errorf("%w: conditional value %q is not condition=value", admin.ErrInvalidArgument, c)
				}
				if param.ConditionalValues == nil {
					param.ConditionalValues = make(map[string]remoteconfig.ParameterValue)
				}
				param.ConditionalValues[condition] = *remoteconfig.ExplicitValue(v)
			}

			svc, err := rt.templateEditor()
			if err != nil {
				return err
			}
			return svc.AddParameterToGroup(group, key, param)
		},
	}
	cmd.Flags().StringVar(&group, "group", "", "Parameter group, created when missing")
	cmd.Flags().StringVar(&key, "key", "", "Parameter key")
	cmd.Flags().StringVar(&value, "value", "", "Default value")
	cmd.Flags().BoolVar(&inAppDefault, "in-app-default", false, "Use the in-app default as the default value")
	cmd.Flags().StringVar(&description, "description", "", "Parameter description")
	cmd.Flags().StringVar(&valueType, "value-type", "", "Value type (STRING, BOOLEAN, NUMBER, JSON)")
	cmd.Flags().StringArrayVar(&conditional, "conditional", nil, "Conditional value as condition=value, repeatable")
	_ = cmd.MarkFlagRequired("group")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}
