package app

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	opts "github.com/goliatone/go-optset"
	"github.com/goliatone/go-optset/pkg/accessor"
	"github.com/goliatone/go-optset/schema/openapi"
)

func (c *cli) showCommand() *cobra.Command {
	var nonDefault bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print every option as key=value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			set, release, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer release()
			for _, option := range set.Options() {
				text, ok, err := option.StringValue()
				if err != nil {
					return err
				}
				if nonDefault {
					unchanged, err := option.IsDefault()
					if err != nil {
						return err
					}
					if unchanged {
						continue
					}
				}
				if !ok {
					text = ""
				}
				fmt.Fprintf(c.out, "%s=%s\n", option.Key(), text)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&nonDefault, "non-default", false, "Only print options that differ from their default")
	return cmd
}

func (c *cli) getCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print the value of one option",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			set, release, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer release()
			text, _, err := set.StringValue(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(c.out, text)
			return nil
		},
	}
}

func (c *cli) setCommand() *cobra.Command {
	var nonDefault bool
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Assign an option from its text and save the set",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			set, release, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer release()
			if err := accessor.New(set).SetString(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			return set.Save(cmd.Context(), nonDefault)
		},
	}
	cmd.Flags().BoolVar(&nonDefault, "non-default", false, "Only save options that differ from their default")
	return cmd
}

func (c *cli) resetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Reset every option to its default and save the set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			set, release, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer release()
			set.ResetToDefault()
			return set.Save(cmd.Context(), false)
		},
	}
}

func (c *cli) schemaCommand() *cobra.Command {
	var asOpenAPI bool
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the descriptors of the set as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			set, release, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer release()
			var document opts.SchemaDocument
			if asOpenAPI {
				document, err = openapi.NewGenerator().Generate(opts.SetDescription{
					Name:        set.Name(),
					Descriptors: set.Descriptors(),
				})
			} else {
				document, err = set.Schema()
			}
			if err != nil {
				return err
			}
			return c.printJSON(document.Document)
		},
	}
	cmd.Flags().BoolVar(&asOpenAPI, "openapi", false, "Render an OpenAPI 3 document")
	return cmd
}

func (c *cli) evalCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "eval <expr>",
		Short: "Evaluate an expression against the set's values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			set, release, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer release()
			result, err := set.Evaluate(args[0])
			if err != nil {
				return err
			}
			return c.printJSON(result.Value)
		},
	}
}

func (c *cli) printJSON(value any) error {
	encoder := json.NewEncoder(c.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
