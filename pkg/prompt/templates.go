// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package prompt

const notationPrimer = `Programs are written in a line-oriented notation, one library call per line:

{example}
Arguments are integers (decimal, hex or a named constant), 'text' buffers (escapes \n \t \r \0 \\ \' \xNN),
"hex" buffers, nil (NULL) or a result rN of an earlier call.
"(guard: N)" makes the program return N when the call fails, "(errno: X)" marks a call that is
expected to fail with the error code X. A program that runs to the end returns 66.
Every handle that is acquired must be released by its release function.
`

const systemAPITemplate = `Act as an API usage synthesizer. Generate valid combinations of available APIs from the target library, ensuring there are no logical or syntactical errors in the program.
`

const systemDriverTemplate = `Act as a library test developer, write a program that follows user's instructions and exercises the library as deep as possible.
`

const systemContextTemplate = `
{description}
The program should focus on the usage of the {project} library, and several essential aspects of the library are provided below.

{notation}
Here are the APIs exported from {project}. You are encouraged to use any of the following APIs once you need to create, initialize or destroy handles:
----------------------
{APIs}
----------------------

Here are the handle types of {project} with the functions that acquire and release them:
----------------------
{resources}
----------------------

Here are the named constants of {project}:
----------------------
{constants}
----------------------
`

const userAPITemplate = `Your task is to write a complete, logically correct program using the {project} library.

Use the following APIs in your program:
    {combinations}

{successful_examples}
Program Requirements:
1. The program must run to the end (return 66) on success.
2. Do not use any control flow; the program is a straight-line sequence of API calls.
3. Use only the APIs and constants listed above.
4. Guard the calls that acquire handles with "(guard: N)" using distinct small numbers.
5. Validate results with expect_eq, expect_ne, expect_len or expect_near where the expected value is known.

Below are project's specific rules:
{project_rules}

Code Quality Rules:
- The program must be self-contained: acquire, use and release all handles.
- The API sequence should follow a realistic and complete usage pattern:
  Initialize -> Configure -> Operate -> Validate -> Cleanup
- Ensure that data flows meaningfully between API calls (no unused results).

Output only the program, one call per line.
`

const userDriverTemplate = `Create a program step by step by using {project} library APIs and following the instructions below:
1. Here are several APIs in {project}. Specify an event that those APIs could achieve together.
    {combinations}
2. Write the program to achieve this event by using those APIs. Each API should be called at least once, if possible.
3. Once you need a file, use a relative file name such as 'input_file' or 'output_file'.
4. Release all acquired handles before the end of the program.

Below are project's specific rules:
{project_rules}

Output only the program, one call per line.
`

const userCotPlanTemplate = `
Use the following APIs in your plan:
    {combinations}

IMPORTANT: Do NOT write the program in this step. Only write a detailed natural language execution plan.

Please create a detailed execution plan for a {project} program that uses the above APIs.

Your execution plan should:
1. List the main API names.
2. If auxiliary APIs are needed for setup or cleanup, just mention their names.
3. Describe step-by-step how to use these APIs following the pattern: Initialize -> Configure -> Operate -> Cleanup.
4. Explain the logic and data flow between API calls.
5. Be detailed enough that the program can be written from it in the next phase.

Requirements for the final program (describe how to meet these in your plan):
- The program runs to the end (return 66) on success.
- No control flow, straight-line sequence of API calls only.
- Divide the program into no more than 3 steps.
- Acquire functions should not get nil arguments.

Output format: a natural language description of the handles used, what each step does,
how data flows between API calls and what cleanup is needed.
`

const userCotCodeTemplate = `
Based on the following execution plan, write a complete, logically correct {project} program.
The program is a straight-line sequence of API calls and runs to the end (return 66) on success.

Execution Plan:
{execution_plan}

Below are project's specific rules, the program you write must follow these rules:
{project_rules}

{successful_examples}
Output only the program, one call per line.
`

const repairTemplate = `The previous attempt to generate a program failed with the following error:

Program:
{failed_program}
Error Type: {error_type}
Error Details: {error_details}

Please regenerate the program to repair the error without changing its logic.
If the error type is an execution error without details, regard it as a crash.
Do not use any control flow; the program is a straight-line sequence of API calls.
Output only the program, one call per line.
`
